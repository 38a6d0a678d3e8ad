// Package step models the slice of a decoded STEP entity graph that the
// triangulation pipeline consumes. Entities live in a flat, immutable
// store indexed by integer id; records reference each other by id only.
//
// The store is read-only once built. Typed accessors resolve an id to a
// specific record kind and report a schema violation when the file
// contradicts its own format contract.
package step

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ID identifies an entity in a Store. It carries no ownership semantics.
type ID int

// ErrSchema marks structural violations: an entity resolved to an
// unexpected record kind where the format guarantees a specific one.
// These are unrecoverable for the whole run.
var ErrSchema = errors.New("schema violation")

// Entity is the closed set of record kinds the pipeline reads.
type Entity interface {
	entity()
}

// CartesianPoint is a 3D point.
type CartesianPoint struct {
	Point v3.Vec
}

// Direction is a 3D direction vector.
type Direction struct {
	Dir v3.Vec
}

// Vector is a direction scaled by a magnitude.
type Vector struct {
	Orientation ID // Direction
	Magnitude   float64
}

// Axis2Placement3D is a location with an axis and a reference direction,
// defining a right-handed frame.
type Axis2Placement3D struct {
	Location     ID // CartesianPoint
	Axis         ID // Direction
	RefDirection ID // Direction
}

// VertexPoint is a topological vertex backed by a point.
type VertexPoint struct {
	Geometry ID // CartesianPoint
}

// EdgeCurve is an edge between two vertices along a curve.
type EdgeCurve struct {
	Start     ID // VertexPoint
	End       ID // VertexPoint
	Geometry  ID // Line, Circle, Ellipse or BSplineCurveWithKnots
	SameSense bool
}

// OrientedEdge traverses an edge curve in a stated direction.
type OrientedEdge struct {
	Edge        ID // EdgeCurve
	Orientation bool
}

// EdgeLoop is an ordered cycle of oriented edges.
type EdgeLoop struct {
	Edges []ID // OrientedEdge
}

// VertexLoop is a loop collapsed to a single vertex, as found at cone
// apexes.
type VertexLoop struct {
	Vertex ID // VertexPoint
}

// FaceBound attaches a loop to a face with an orientation flag. STEP's
// FACE_OUTER_BOUND carries no extra information this pipeline uses, so
// both map to this record.
type FaceBound struct {
	Bound       ID // EdgeLoop or VertexLoop
	Orientation bool
}

// AdvancedFace is a surface bounded by one or more loops.
type AdvancedFace struct {
	Bounds    []ID // FaceBound
	Surface   ID
	SameSense bool
}

// Plane is a planar surface defined by a placement.
type Plane struct {
	Position ID // Axis2Placement3D
}

// CylindricalSurface is a cylinder defined by a placement and radius.
type CylindricalSurface struct {
	Position ID // Axis2Placement3D
	Radius   float64
}

// ConicalSurface is a cone defined by a placement, radius and half-angle.
type ConicalSurface struct {
	Position  ID // Axis2Placement3D
	Radius    float64
	SemiAngle float64
}

// BSplineSurfaceWithKnots is a B-spline patch. Knots are stored with
// multiplicities, control points as a grid of point ids.
type BSplineSurfaceWithKnots struct {
	UDegree          int
	VDegree          int
	ControlPoints    [][]ID // CartesianPoint
	UClosed          bool
	VClosed          bool
	SelfIntersecting bool
	UMultiplicities  []int
	VMultiplicities  []int
	UKnots           []float64
	VKnots           []float64
}

// Line is an unbounded line through a point along a vector.
type Line struct {
	Point ID // CartesianPoint
	Dir   ID // Vector
}

// Circle lies on the unit circle of its placement scaled by Radius.
type Circle struct {
	Position ID // Axis2Placement3D
	Radius   float64
}

// Ellipse is a circle with two radii.
type Ellipse struct {
	Position ID // Axis2Placement3D
	Radius1  float64
	Radius2  float64
}

// BSplineCurveWithKnots is a free-form boundary curve. The pipeline does
// not evaluate these; loops containing one are skipped with a diagnostic.
type BSplineCurveWithKnots struct {
	Degree           int
	ControlPoints    []ID // CartesianPoint
	Closed           bool
	SelfIntersecting bool
	Multiplicities   []int
	Knots            []float64
}

func (CartesianPoint) entity()          {}
func (Direction) entity()               {}
func (Vector) entity()                  {}
func (Axis2Placement3D) entity()        {}
func (VertexPoint) entity()             {}
func (EdgeCurve) entity()               {}
func (OrientedEdge) entity()            {}
func (EdgeLoop) entity()                {}
func (VertexLoop) entity()              {}
func (FaceBound) entity()               {}
func (AdvancedFace) entity()            {}
func (Plane) entity()                   {}
func (CylindricalSurface) entity()      {}
func (ConicalSurface) entity()          {}
func (BSplineSurfaceWithKnots) entity() {}
func (Line) entity()                    {}
func (Circle) entity()                  {}
func (Ellipse) entity()                 {}
func (BSplineCurveWithKnots) entity()   {}

// Store is the flat entity array. Index 0 is conventionally unused in
// STEP files; unoccupied slots hold nil.
type Store struct {
	entities []Entity
}

// NewStore wraps a flat entity slice. The slice is not copied; the
// caller must not mutate it afterwards.
func NewStore(entities []Entity) *Store {
	return &Store{entities: entities}
}

// Len returns the number of entity slots, including nil ones.
func (s *Store) Len() int {
	return len(s.entities)
}

// At returns the entity at id, or nil for out-of-range or empty slots.
func (s *Store) At(id ID) Entity {
	if id < 0 || int(id) >= len(s.entities) {
		return nil
	}
	return s.entities[id]
}

// kindError builds the uniform schema-violation error.
func kindError(id ID, want string, got Entity) error {
	return fmt.Errorf("%w: entity #%d: expected %s, got %T", ErrSchema, id, want, got)
}

// Point resolves a CartesianPoint.
func (s *Store) Point(id ID) (v3.Vec, error) {
	e, ok := s.At(id).(CartesianPoint)
	if !ok {
		return v3.Vec{}, kindError(id, "cartesian_point", s.At(id))
	}
	return e.Point, nil
}

// Direction resolves a Direction.
func (s *Store) Direction(id ID) (v3.Vec, error) {
	e, ok := s.At(id).(Direction)
	if !ok {
		return v3.Vec{}, kindError(id, "direction", s.At(id))
	}
	return e.Dir, nil
}

// Vector resolves a Vector to its direction scaled by its magnitude.
func (s *Store) Vector(id ID) (v3.Vec, error) {
	e, ok := s.At(id).(Vector)
	if !ok {
		return v3.Vec{}, kindError(id, "vector", s.At(id))
	}
	d, err := s.Direction(e.Orientation)
	if err != nil {
		return v3.Vec{}, err
	}
	return d.MulScalar(e.Magnitude), nil
}

// VertexPoint resolves a VertexPoint through to its 3D position.
func (s *Store) VertexPoint(id ID) (v3.Vec, error) {
	e, ok := s.At(id).(VertexPoint)
	if !ok {
		return v3.Vec{}, kindError(id, "vertex_point", s.At(id))
	}
	return s.Point(e.Geometry)
}

// Placement is a resolved Axis2Placement3D.
type Placement struct {
	Location     v3.Vec
	Axis         v3.Vec
	RefDirection v3.Vec
}

// Placement resolves an Axis2Placement3D and its three references.
func (s *Store) Placement(id ID) (Placement, error) {
	e, ok := s.At(id).(Axis2Placement3D)
	if !ok {
		return Placement{}, kindError(id, "axis2_placement_3d", s.At(id))
	}
	loc, err := s.Point(e.Location)
	if err != nil {
		return Placement{}, err
	}
	axis, err := s.Direction(e.Axis)
	if err != nil {
		return Placement{}, err
	}
	ref, err := s.Direction(e.RefDirection)
	if err != nil {
		return Placement{}, err
	}
	return Placement{Location: loc, Axis: axis, RefDirection: ref}, nil
}
