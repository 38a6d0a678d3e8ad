// Package geom provides the shared linear algebra for the triangulation
// pipeline: affine frames built from basis vectors and an origin, with
// inversion and point application.
package geom

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/mat"
)

// Affine is a 4x4 affine transform in homogeneous coordinates.
type Affine struct {
	m *mat.Dense
}

// NewAffine builds the transform whose columns are the given basis
// vectors and origin: local (x, y, z) maps to
// x*xWorld + y*yWorld + z*zWorld + origin.
func NewAffine(xWorld, yWorld, zWorld, origin v3.Vec) Affine {
	return Affine{m: mat.NewDense(4, 4, []float64{
		xWorld.X, yWorld.X, zWorld.X, origin.X,
		xWorld.Y, yWorld.Y, zWorld.Y, origin.Y,
		xWorld.Z, yWorld.Z, zWorld.Z, origin.Z,
		0, 0, 0, 1,
	})}
}

// NewRigid builds a rigid frame from a z axis, an x reference direction
// and an origin. The y axis is the cross product of the two.
func NewRigid(zWorld, xWorld, origin v3.Vec) Affine {
	return NewAffine(xWorld, zWorld.Cross(xWorld), zWorld, origin)
}

// Inverse returns the inverse transform. A degenerate basis is reported
// as an error.
func (a Affine) Inverse() (Affine, error) {
	var inv mat.Dense
	if err := inv.Inverse(a.m); err != nil {
		return Affine{}, fmt.Errorf("geom: transform is not invertible: %w", err)
	}
	return Affine{m: &inv}, nil
}

// Apply transforms a point.
func (a Affine) Apply(p v3.Vec) v3.Vec {
	m := a.m
	return v3.Vec{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3),
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3),
		Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3),
	}
}
