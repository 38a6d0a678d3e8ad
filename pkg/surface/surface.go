// Package surface abstracts the parametric surfaces a face can lie on.
// A Surface projects 3D boundary points into its 2D parameter space for
// triangulation and evaluates outward normals. The set of variants is
// closed: Plane (which also stands in for cones), Cylinder and BSpline.
package surface

import (
	"errors"
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/stepmesh/pkg/geom"
	"github.com/chazu/stepmesh/pkg/nurbs"
	"github.com/chazu/stepmesh/pkg/step"
)

// ErrUnsupported marks surface kinds the pipeline cannot parameterize.
// Faces on such surfaces are skipped; the run continues.
var ErrUnsupported = errors.New("unsupported surface type")

// Surface is a face's underlying parametric surface.
type Surface interface {
	// Lower projects a 3D point lying on the surface into the surface's
	// 2D parameter space.
	Lower(p v3.Vec) v2.Vec
	// Normal evaluates the surface normal at a boundary point, given
	// both the 3D position and its lowered 2D position.
	Normal(p v3.Vec, uv v2.Vec) v3.Vec
	// Sign reports whether the parameterization's handedness is flipped
	// relative to planes. The per-variant values are empirical winding
	// fixes carried over unchanged; see the package tests.
	Sign() bool

	isSurface()
}

// Plane is a planar surface. Cones are approximated by the tangent
// plane at their placement, which is a valid mapping into 2D.
type Plane struct {
	normal v3.Vec
	inv    geom.Affine
}

// NewPlane builds a plane from an axis placement.
func NewPlane(pl step.Placement) (*Plane, error) {
	inv, err := geom.NewRigid(pl.Axis, pl.RefDirection, pl.Location).Inverse()
	if err != nil {
		return nil, err
	}
	return &Plane{normal: pl.Axis, inv: inv}, nil
}

func (s *Plane) Lower(p v3.Vec) v2.Vec {
	q := s.inv.Apply(p)
	return v2.Vec{X: q.X, Y: q.Y}
}

func (s *Plane) Normal(p v3.Vec, uv v2.Vec) v3.Vec {
	return s.normal
}

func (s *Plane) Sign() bool { return false }

func (s *Plane) isSurface() {}

// Cylinder is a cylindrical surface.
type Cylinder struct {
	location v3.Vec
	axis     v3.Vec
	radius   float64
	inv      geom.Affine
}

// NewCylinder builds a cylinder from an axis placement and radius.
func NewCylinder(pl step.Placement, radius float64) (*Cylinder, error) {
	inv, err := geom.NewRigid(pl.Axis, pl.RefDirection, pl.Location).Inverse()
	if err != nil {
		return nil, err
	}
	return &Cylinder{
		location: pl.Location,
		axis:     pl.Axis,
		radius:   radius,
		inv:      inv,
	}, nil
}

// Lower maps into local frame coordinates, then blends x and y by a
// logistic function of z/radius. Unlike theta-z coordinates this has no
// wrap seam, so boundary loops stay topologically intact.
func (s *Cylinder) Lower(p v3.Vec) v2.Vec {
	q := s.inv.Apply(p)
	scale := 1 / (1 + math.Exp(-q.Z/s.radius))
	return v2.Vec{X: q.X * scale, Y: q.Y * scale}
}

func (s *Cylinder) Normal(p v3.Vec, uv v2.Vec) v3.Vec {
	// Nearest point on the axis, then point away from it.
	proj := p.Sub(s.location).Dot(s.axis)
	nearest := s.location.Add(s.axis.MulScalar(proj))
	return p.Sub(nearest).Normalize().Neg()
}

func (s *Cylinder) Sign() bool { return true }

func (s *Cylinder) isSurface() {}

// BSpline is a B-spline surface patch.
type BSpline struct {
	patch *nurbs.Patch
}

// NewBSpline wraps an evaluated patch.
func NewBSpline(patch *nurbs.Patch) *BSpline {
	return &BSpline{patch: patch}
}

// Lower inverts the surface evaluation, recovering the (u, v) parameters
// of the given boundary point.
func (s *BSpline) Lower(p v3.Vec) v2.Vec {
	u, v := s.patch.ClosestParam(p)
	return v2.Vec{X: u, Y: v}
}

func (s *BSpline) Normal(p v3.Vec, uv v2.Vec) v3.Vec {
	return s.patch.Normal(uv.X, uv.Y)
}

func (s *BSpline) Sign() bool { return true }

func (s *BSpline) isSurface() {}

// FromEntity resolves a surface entity id into a Surface. Unrecognized
// kinds are reported with ErrUnsupported so callers can skip the face;
// any other error is a schema violation in the referenced records.
func FromEntity(st *step.Store, id step.ID) (Surface, error) {
	switch e := st.At(id).(type) {
	case step.Plane:
		pl, err := st.Placement(e.Position)
		if err != nil {
			return nil, err
		}
		return NewPlane(pl)

	case step.CylindricalSurface:
		pl, err := st.Placement(e.Position)
		if err != nil {
			return nil, err
		}
		return NewCylinder(pl, e.Radius)

	case step.ConicalSurface:
		// Approximated by the tangent plane at the placement.
		pl, err := st.Placement(e.Position)
		if err != nil {
			return nil, err
		}
		return NewPlane(pl)

	case step.BSplineSurfaceWithKnots:
		return fromBSplineEntity(st, id, e)

	default:
		return nil, fmt.Errorf("%w: entity #%d is %T", ErrUnsupported, id, st.At(id))
	}
}

func fromBSplineEntity(st *step.Store, id step.ID, e step.BSplineSurfaceWithKnots) (Surface, error) {
	if e.UClosed || e.VClosed {
		return nil, fmt.Errorf("surface: entity #%d: closed b-spline surfaces are not handled", id)
	}
	if e.SelfIntersecting {
		return nil, fmt.Errorf("surface: entity #%d: self-intersecting b-spline surface", id)
	}

	points := make([][]v3.Vec, len(e.ControlPoints))
	for i, row := range e.ControlPoints {
		points[i] = make([]v3.Vec, len(row))
		for j, pid := range row {
			p, err := st.Point(pid)
			if err != nil {
				return nil, err
			}
			points[i][j] = p
		}
	}

	uKnots, err := nurbs.FromMultiplicities(e.UKnots, e.UMultiplicities)
	if err != nil {
		return nil, fmt.Errorf("surface: entity #%d: %w", id, err)
	}
	vKnots, err := nurbs.FromMultiplicities(e.VKnots, e.VMultiplicities)
	if err != nil {
		return nil, fmt.Errorf("surface: entity #%d: %w", id, err)
	}

	patch, err := nurbs.NewPatch(e.UDegree, e.VDegree, uKnots, vKnots, points)
	if err != nil {
		return nil, fmt.Errorf("surface: entity #%d: %w", id, err)
	}
	return NewBSpline(patch), nil
}
