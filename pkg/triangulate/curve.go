package triangulate

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/stepmesh/pkg/geom"
	"github.com/chazu/stepmesh/pkg/step"
)

// machineEps is the IEEE 754 double-precision machine epsilon, the
// tolerance for the line endpoint consistency check.
const machineEps = 0x1p-52

// fullCircleSamples is the sample count for a full turn; arcs get a
// proportional share, with a floor of four.
const fullCircleSamples = 64

// line returns the two endpoints of a straight edge. The defining point
// and direction are only used to verify that the endpoints actually lie
// on the line: re-projecting each endpoint's scalar offset must
// reproduce it to machine epsilon, anything else means the input file
// contradicts itself and the run cannot continue safely.
func (t *Triangulator) line(u, v v3.Vec, pointID, dirID step.ID) ([]v3.Vec, error) {
	pnt, err := t.store.Point(pointID)
	if err != nil {
		return nil, err
	}
	dir, err := t.store.Vector(dirID)
	if err != nil {
		return nil, err
	}

	start := u.Sub(pnt).Dot(dir)
	end := v.Sub(pnt).Dot(dir)

	if u.Sub(pnt.Add(dir.MulScalar(start))).Length2() >= machineEps {
		return nil, fmt.Errorf("triangulate: line #%d: start vertex does not lie on the line", dirID)
	}
	if v.Sub(pnt.Add(dir.MulScalar(end))).Length2() >= machineEps {
		return nil, fmt.Errorf("triangulate: line #%d: end vertex does not lie on the line", dirID)
	}

	return []v3.Vec{u, v}, nil
}

// ellipse samples a circular or elliptical arc between u and v. The
// placement and radii define an affine basis in which the arc lies on
// the unit circle (the "ellipse plane"); endpoints become angles there.
// closed marks a full turn (start and end vertices coincide); dir is
// the direction of travel. The first and last samples are the exact
// supplied endpoints so shared vertices do not accumulate drift.
func (t *Triangulator) ellipse(u, v v3.Vec, positionID step.ID, radius1, radius2 float64, closed, dir bool) ([]v3.Vec, error) {
	pl, err := t.store.Placement(positionID)
	if err != nil {
		return nil, err
	}

	worldFromEplane := geom.NewAffine(
		pl.RefDirection.MulScalar(radius1),
		pl.Axis.Cross(pl.RefDirection).MulScalar(radius2),
		pl.Axis,
		pl.Location,
	)
	eplaneFromWorld, err := worldFromEplane.Inverse()
	if err != nil {
		return nil, fmt.Errorf("triangulate: ellipse #%d: %w", positionID, err)
	}

	ue := eplaneFromWorld.Apply(u)
	ve := eplaneFromWorld.Apply(v)

	uAng := math.Atan2(ue.Y, ue.X)
	vAng := math.Atan2(ve.Y, ve.X)

	// Resolve the angular span so travel is monotonic in the stated
	// direction; a closed arc is exactly one full turn.
	const tau = 2 * math.Pi
	if closed {
		if dir {
			vAng = uAng + tau
		} else {
			vAng = uAng - tau
		}
	} else if dir && vAng <= uAng {
		vAng += tau
	} else if !dir && vAng >= uAng {
		vAng -= tau
	}

	count := int(math.Round(fullCircleSamples * math.Abs(uAng-vAng) / tau))
	if count < 4 {
		count = 4
	}

	out := make([]v3.Vec, 0, count)
	out = append(out, u)
	for i := 1; i < count-1; i++ {
		frac := float64(i) / float64(count-1)
		ang := uAng*(1-frac) + vAng*frac
		out = append(out, worldFromEplane.Apply(v3.Vec{X: math.Cos(ang), Y: math.Sin(ang)}))
	}
	out = append(out, v)
	return out, nil
}
