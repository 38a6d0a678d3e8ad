package nurbs

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Patch is a non-rational B-spline surface. Control points are laid out
// as a grid with u increasing by row and v by column.
type Patch struct {
	uDegree int
	vDegree int
	uKnots  KnotVector
	vKnots  KnotVector
	points  [][]v3.Vec
}

// NewPatch validates the degree/knot/control-point relations and builds
// a patch. Knot vectors are expected non-periodic.
func NewPatch(uDegree, vDegree int, uKnots, vKnots KnotVector, points [][]v3.Vec) (*Patch, error) {
	if uDegree < 1 || vDegree < 1 {
		return nil, fmt.Errorf("nurbs: degrees must be at least 1, got (%d, %d)", uDegree, vDegree)
	}
	if len(points) == 0 || len(points[0]) == 0 {
		return nil, fmt.Errorf("nurbs: empty control point grid")
	}
	cols := len(points[0])
	for _, row := range points {
		if len(row) != cols {
			return nil, fmt.Errorf("nurbs: ragged control point grid")
		}
	}
	if len(uKnots) != len(points)+uDegree+1 {
		return nil, fmt.Errorf("nurbs: u: %d control rows + degree %d + 1 != %d knots",
			len(points), uDegree, len(uKnots))
	}
	if len(vKnots) != cols+vDegree+1 {
		return nil, fmt.Errorf("nurbs: v: %d control columns + degree %d + 1 != %d knots",
			cols, vDegree, len(vKnots))
	}
	return &Patch{
		uDegree: uDegree,
		vDegree: vDegree,
		uKnots:  uKnots,
		vKnots:  vKnots,
		points:  points,
	}, nil
}

// Point evaluates the surface at (u, v).
func (p *Patch) Point(u, v float64) v3.Vec {
	uSpan := p.uKnots.Span(p.uDegree, u)
	vSpan := p.vKnots.Span(p.vDegree, v)
	uBasis := p.uKnots.basisFunctions(uSpan, u, p.uDegree)
	vBasis := p.vKnots.basisFunctions(vSpan, v, p.vDegree)

	var pos v3.Vec
	for l := 0; l <= p.vDegree; l++ {
		var temp v3.Vec
		vind := vSpan - p.vDegree + l
		for k := 0; k <= p.uDegree; k++ {
			temp = temp.Add(p.points[uSpan-p.uDegree+k][vind].MulScalar(uBasis[k]))
		}
		pos = pos.Add(temp.MulScalar(vBasis[l]))
	}
	return pos
}

// Derivs evaluates the surface and its partial derivatives at (u, v).
// The result is indexed as [k][l] = d^(k+l) S / du^k dv^l, for
// k+l <= numDerivs; [0][0] is the surface point.
func (p *Patch) Derivs(u, v float64, numDerivs int) [][]v3.Vec {
	du := numDerivs
	if du > p.uDegree {
		du = p.uDegree
	}
	dv := numDerivs
	if dv > p.vDegree {
		dv = p.vDegree
	}

	skl := make([][]v3.Vec, numDerivs+1)
	for i := range skl {
		skl[i] = make([]v3.Vec, numDerivs+1)
	}

	uSpan := p.uKnots.Span(p.uDegree, u)
	vSpan := p.vKnots.Span(p.vDegree, v)
	uders := p.uKnots.derivBasisFunctions(uSpan, u, p.uDegree, du)
	vders := p.vKnots.derivBasisFunctions(vSpan, v, p.vDegree, dv)

	temp := make([]v3.Vec, p.vDegree+1)
	for k := 0; k <= du; k++ {
		for s := range temp {
			temp[s] = v3.Vec{}
			for r := 0; r <= p.uDegree; r++ {
				temp[s] = temp[s].Add(p.points[uSpan-p.uDegree+r][vSpan-p.vDegree+s].MulScalar(uders[k][r]))
			}
		}
		dd := numDerivs - k
		if dd > dv {
			dd = dv
		}
		for l := 0; l <= dd; l++ {
			var d v3.Vec
			for s := 0; s <= p.vDegree; s++ {
				d = d.Add(temp[s].MulScalar(vders[l][s]))
			}
			skl[k][l] = d
		}
	}
	return skl
}

// Normal returns the cross product of the first-order partial
// derivatives at (u, v). It is not normalized.
func (p *Patch) Normal(u, v float64) v3.Vec {
	derivs := p.Derivs(u, v, 1)
	return derivs[1][0].Cross(derivs[0][1])
}

// Newton iteration bounds for ClosestParam, following the closest-point
// projection scheme of The NURBS Book §6.1.
const (
	closestMaxIterations = 5
	closestEpsPoint      = 1e-4 // point coincidence
	closestEpsCosine     = 5e-4 // tangent/residual angle
)

// ClosestParam recovers the (u, v) parameters whose surface point is
// nearest to q. A coarse grid over the parametric domain seeds a Newton
// iteration on the projection equations Su·r = 0, Sv·r = 0 with
// r = S(u,v) - q. The patch is assumed non-periodic, so iterates are
// clamped to the domain.
func (p *Patch) ClosestParam(q v3.Vec) (float64, float64) {
	minU, maxU := p.uKnots.Domain()
	minV, maxV := p.vKnots.Domain()

	// Seed from a coarse tessellation of the domain.
	divsU := 2 * (len(p.points) - 1)
	if divsU < 8 {
		divsU = 8
	}
	divsV := 2 * (len(p.points[0]) - 1)
	if divsV < 8 {
		divsV = 8
	}

	var cu, cv float64
	dmin := math.MaxFloat64
	for i := 0; i <= divsU; i++ {
		u := minU + (maxU-minU)*float64(i)/float64(divsU)
		for j := 0; j <= divsV; j++ {
			v := minV + (maxV-minV)*float64(j)/float64(divsV)
			d := p.Point(u, v).Sub(q).Length2()
			if d < dmin {
				dmin = d
				cu, cv = u, v
			}
		}
	}

	for i := 0; i < closestMaxIterations; i++ {
		e := p.Derivs(cu, cv, 2)
		r := e[0][0].Sub(q)
		su, sv := e[1][0], e[0][1]
		suu, svv, suv := e[2][0], e[0][2], e[1][1]

		dist := r.Length()
		if dist < closestEpsPoint {
			return cu, cv
		}
		cosU := math.Abs(su.Dot(r)) / (su.Length() * dist)
		cosV := math.Abs(sv.Dot(r)) / (sv.Length() * dist)
		if cosU < closestEpsCosine && cosV < closestEpsCosine {
			return cu, cv
		}

		// Solve J d = -[Su.r, Sv.r] for the parameter step.
		j00 := su.Dot(su) + suu.Dot(r)
		j01 := su.Dot(sv) + suv.Dot(r)
		j11 := sv.Dot(sv) + svv.Dot(r)
		det := j00*j11 - j01*j01
		if det == 0 {
			return cu, cv
		}
		f, g := su.Dot(r), sv.Dot(r)
		du := (-f*j11 + g*j01) / det
		dv := (-g*j00 + f*j01) / det

		nu := math.Min(math.Max(cu+du, minU), maxU)
		nv := math.Min(math.Max(cv+dv, minV), maxV)

		// Halt when the parametric step no longer moves the point.
		stepLen := su.MulScalar(nu - cu).Length() + sv.MulScalar(nv - cv).Length()
		cu, cv = nu, nv
		if stepLen < closestEpsPoint {
			return cu, cv
		}
	}
	return cu, cv
}
