package triangulate_test

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/stepmesh/pkg/cdt"
	"github.com/chazu/stepmesh/pkg/mesh"
	"github.com/chazu/stepmesh/pkg/step"
	"github.com/chazu/stepmesh/pkg/triangulate"
)

// builder accumulates entities into a flat slice, handing out ids.
type builder struct {
	ents []step.Entity
}

func (b *builder) add(e step.Entity) step.ID {
	b.ents = append(b.ents, e)
	return step.ID(len(b.ents) - 1)
}

func (b *builder) store() *step.Store {
	return step.NewStore(b.ents)
}

func (b *builder) point(p v3.Vec) step.ID {
	return b.add(step.CartesianPoint{Point: p})
}

func (b *builder) vertex(p v3.Vec) step.ID {
	return b.add(step.VertexPoint{Geometry: b.point(p)})
}

// placement builds an axis placement frame.
func (b *builder) placement(loc, axis, ref v3.Vec) step.ID {
	return b.add(step.Axis2Placement3D{
		Location:     b.point(loc),
		Axis:         b.add(step.Direction{Dir: axis}),
		RefDirection: b.add(step.Direction{Dir: ref}),
	})
}

// lineEdge builds the line geometry and edge curve from vertex va at a
// to vertex vb at bp.
func (b *builder) lineEdge(va, vb step.ID, a, bp v3.Vec) step.ID {
	dir := b.add(step.Direction{Dir: bp.Sub(a).Normalize()})
	vec := b.add(step.Vector{Orientation: dir, Magnitude: 1})
	line := b.add(step.Line{Point: b.point(a), Dir: vec})
	return b.add(step.EdgeCurve{Start: va, End: vb, Geometry: line, SameSense: true})
}

// polygonBound builds a face bound over a closed loop of line edges.
func (b *builder) polygonBound(corners []v3.Vec) step.ID {
	verts := make([]step.ID, len(corners))
	for i, c := range corners {
		verts[i] = b.vertex(c)
	}
	edges := make([]step.ID, len(corners))
	for i := range corners {
		j := (i + 1) % len(corners)
		ec := b.lineEdge(verts[i], verts[j], corners[i], corners[j])
		edges[i] = b.add(step.OrientedEdge{Edge: ec, Orientation: true})
	}
	loop := b.add(step.EdgeLoop{Edges: edges})
	return b.add(step.FaceBound{Bound: loop, Orientation: true})
}

// circleBound builds a face bound over a full circle in the z=0 plane.
func (b *builder) circleBound(center v3.Vec, radius float64) step.ID {
	pl := b.placement(center, v3.Vec{Z: 1}, v3.Vec{X: 1})
	circle := b.add(step.Circle{Position: pl, Radius: radius})
	v := b.vertex(center.Add(v3.Vec{X: radius}))
	ec := b.add(step.EdgeCurve{Start: v, End: v, Geometry: circle, SameSense: true})
	loop := b.add(step.EdgeLoop{Edges: []step.ID{b.add(step.OrientedEdge{Edge: ec, Orientation: true})}})
	return b.add(step.FaceBound{Bound: loop, Orientation: true})
}

// xyPlane builds a plane surface through the origin with normal +z.
func (b *builder) xyPlane() step.ID {
	return b.add(step.Plane{Position: b.placement(v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{X: 1})})
}

func unitSquare() []v3.Vec {
	return []v3.Vec{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	}
}

// windings returns the signed area component of each triangle along the
// given axis.
func windings(m *mesh.Mesh, axis v3.Vec) []float64 {
	out := make([]float64, 0, m.TriangleCount())
	for _, tr := range m.Triangles {
		a := m.Vertices[tr.V[0]].Pos
		b := m.Vertices[tr.V[1]].Pos
		c := m.Vertices[tr.V[2]].Pos
		out = append(out, b.Sub(a).Cross(c.Sub(a)).Dot(axis))
	}
	return out
}

func meshArea(m *mesh.Mesh) float64 {
	var sum float64
	for _, w := range windings(m, v3.Vec{Z: 1}) {
		sum += math.Abs(w) / 2
	}
	return sum
}

func TestSquareFaceWinding(t *testing.T) {
	var b builder
	bound := b.polygonBound(unitSquare())
	b.add(step.AdvancedFace{Bounds: []step.ID{bound}, Surface: b.xyPlane(), SameSense: true})

	m, err := triangulate.Triangulate(b.store())
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}
	if m.VertexCount() != 4 || m.TriangleCount() != 2 {
		t.Fatalf("mesh has %d vertices, %d triangles; want 4, 2", m.VertexCount(), m.TriangleCount())
	}
	for i, w := range windings(m, v3.Vec{Z: 1}) {
		if w <= 0 {
			t.Errorf("triangle %d wound against the face normal (%g)", i, w)
		}
	}
	for i, v := range m.Vertices {
		if v.Norm.Sub(v3.Vec{Z: 1}).Length() > 1e-12 {
			t.Errorf("vertex %d normal = %v, want (0, 0, 1)", i, v.Norm)
		}
	}
}

func TestFlippedFaceWinding(t *testing.T) {
	var b builder
	bound := b.polygonBound(unitSquare())
	b.add(step.AdvancedFace{Bounds: []step.ID{bound}, Surface: b.xyPlane(), SameSense: false})

	m, err := triangulate.Triangulate(b.store())
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}
	for i, w := range windings(m, v3.Vec{Z: 1}) {
		if w >= 0 {
			t.Errorf("triangle %d wound along the reversed normal (%g)", i, w)
		}
	}
}

func TestPlateWithHole(t *testing.T) {
	var b builder
	outer := b.polygonBound([]v3.Vec{
		{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4},
	})
	hole := b.circleBound(v3.Vec{X: 2, Y: 2}, 1)
	b.add(step.AdvancedFace{Bounds: []step.ID{outer, hole}, Surface: b.xyPlane(), SameSense: true})

	m, err := triangulate.Triangulate(b.store())
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}
	// 4 corners plus 63 distinct circle samples.
	if m.VertexCount() != 67 {
		t.Errorf("vertex count = %d, want 67", m.VertexCount())
	}
	// The hole's area is that of the inscribed 64-gon, slightly under pi.
	want := 16 - math.Pi
	if area := meshArea(m); math.Abs(area-want) > 0.02 {
		t.Errorf("mesh area = %g, want about %g", area, want)
	}
}

func TestApexVertexLoop(t *testing.T) {
	// A cone cap degenerates to a circle boundary plus the apex as a
	// single-vertex loop; the apex becomes an interior point.
	var b builder
	rim := b.circleBound(v3.Vec{}, 1)
	apexLoop := b.add(step.VertexLoop{Vertex: b.vertex(v3.Vec{})})
	apex := b.add(step.FaceBound{Bound: apexLoop, Orientation: true})
	cone := b.add(step.ConicalSurface{
		Position:  b.placement(v3.Vec{}, v3.Vec{Z: 1}, v3.Vec{X: 1}),
		Radius:    1,
		SemiAngle: 0.3,
	})
	b.add(step.AdvancedFace{Bounds: []step.ID{rim, apex}, Surface: cone, SameSense: true})

	m, err := triangulate.Triangulate(b.store())
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}
	if m.VertexCount() != 64 {
		t.Fatalf("vertex count = %d, want 63 rim + 1 apex", m.VertexCount())
	}
	used := false
	for _, tr := range m.Triangles {
		for _, idx := range tr.V {
			if idx == 63 {
				used = true
			}
		}
	}
	if !used {
		t.Error("no triangle references the apex vertex")
	}
}

func TestUnsupportedSurfaceSkipped(t *testing.T) {
	var b builder
	// First face sits on an entity that is no surface at all.
	bad := b.polygonBound(unitSquare())
	b.add(step.AdvancedFace{Bounds: []step.ID{bad}, Surface: b.point(v3.Vec{}), SameSense: true})

	good := b.polygonBound(unitSquare())
	b.add(step.AdvancedFace{Bounds: []step.ID{good}, Surface: b.xyPlane(), SameSense: true})

	m, err := triangulate.Triangulate(b.store())
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}
	if m.TriangleCount() != 2 {
		t.Errorf("triangle count = %d, want 2 from the surviving face", m.TriangleCount())
	}
}

func TestFreeFormBoundaryTolerated(t *testing.T) {
	var b builder
	// A loop whose only edge is a free-form curve produces no points; the
	// face yields nothing but the run continues.
	bs := b.add(step.BSplineCurveWithKnots{Degree: 3})
	v := b.vertex(v3.Vec{})
	ec := b.add(step.EdgeCurve{Start: v, End: v, Geometry: bs, SameSense: true})
	loop := b.add(step.EdgeLoop{Edges: []step.ID{b.add(step.OrientedEdge{Edge: ec, Orientation: true})}})
	bound := b.add(step.FaceBound{Bound: loop, Orientation: true})
	b.add(step.AdvancedFace{Bounds: []step.ID{bound}, Surface: b.xyPlane(), SameSense: true})

	good := b.polygonBound(unitSquare())
	b.add(step.AdvancedFace{Bounds: []step.ID{good}, Surface: b.xyPlane(), SameSense: true})

	m, err := triangulate.Triangulate(b.store())
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}
	if m.TriangleCount() != 2 {
		t.Errorf("triangle count = %d, want 2 from the surviving face", m.TriangleCount())
	}
}

func TestBrokenBoundFatal(t *testing.T) {
	var b builder
	// The face's bound id resolves to a point, which the format forbids.
	bad := b.point(v3.Vec{})
	b.add(step.AdvancedFace{Bounds: []step.ID{bad}, Surface: b.xyPlane(), SameSense: true})

	_, err := triangulate.Triangulate(b.store())
	if !errors.Is(err, step.ErrSchema) {
		t.Errorf("err = %v, want ErrSchema", err)
	}
}

// rejectAll is an engine that refuses every face.
type rejectAll struct{}

func (rejectAll) Triangulate([]v2.Vec, []cdt.Edge) ([]cdt.Triangle, error) {
	return nil, errors.New("rejected")
}

func TestEngineFailureSkipsFaceAndDumps(t *testing.T) {
	var b builder
	bound := b.polygonBound(unitSquare())
	plane := b.xyPlane()
	b.add(step.AdvancedFace{Bounds: []step.ID{bound}, Surface: plane, SameSense: true})

	dir := t.TempDir()
	m, err := triangulate.Triangulate(b.store(),
		triangulate.WithEngine(rejectAll{}),
		triangulate.WithDebugDir(dir))
	if err != nil {
		t.Fatalf("Triangulate failed: %v", err)
	}
	if m.TriangleCount() != 0 {
		t.Errorf("triangle count = %d, want 0", m.TriangleCount())
	}

	dump := filepath.Join(dir, fmt.Sprintf("out%d.svg", plane))
	if _, err := os.Stat(dump); err != nil {
		t.Errorf("debug dump %s missing: %v", dump, err)
	}
}

func TestSaveSTL(t *testing.T) {
	var b builder
	bound := b.polygonBound(unitSquare())
	b.add(step.AdvancedFace{Bounds: []step.ID{bound}, Surface: b.xyPlane(), SameSense: true})

	tr := triangulate.New(b.store())
	if err := tr.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "square.stl")
	if err := tr.SaveSTL(path); err != nil {
		t.Fatalf("SaveSTL failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	want := int64(84 + 50*tr.Mesh().TriangleCount())
	if info.Size() != want {
		t.Errorf("file size = %d, want %d", info.Size(), want)
	}
}
