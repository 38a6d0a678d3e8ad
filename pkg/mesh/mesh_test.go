package mesh_test

import (
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/stepmesh/pkg/mesh"
)

func TestAccumulation(t *testing.T) {
	m := mesh.New()
	if !m.IsEmpty() {
		t.Fatal("new mesh should be empty")
	}

	a := m.AddVertex(mesh.Vertex{Pos: v3.Vec{X: 1}})
	b := m.AddVertex(mesh.Vertex{Pos: v3.Vec{Y: 1}})
	c := m.AddVertex(mesh.Vertex{Pos: v3.Vec{Z: 1}})
	if a != 0 || b != 1 || c != 2 {
		t.Fatalf("indices = %d, %d, %d", a, b, c)
	}

	m.AddTriangle(a, b, c)
	if m.VertexCount() != 3 || m.TriangleCount() != 1 {
		t.Fatalf("counts = %d vertices, %d triangles", m.VertexCount(), m.TriangleCount())
	}
	if m.Triangles[0].V != [3]uint32{0, 1, 2} {
		t.Errorf("triangle = %v", m.Triangles[0].V)
	}
	if m.IsEmpty() {
		t.Error("mesh with vertices reports empty")
	}
}

func TestPopVertex(t *testing.T) {
	m := mesh.New()
	m.AddVertex(mesh.Vertex{Pos: v3.Vec{X: 1}})
	m.AddVertex(mesh.Vertex{Pos: v3.Vec{X: 2}})
	m.PopVertex()

	if m.VertexCount() != 1 {
		t.Fatalf("VertexCount = %d, want 1", m.VertexCount())
	}
	// The next index reuses the popped slot.
	if idx := m.AddVertex(mesh.Vertex{Pos: v3.Vec{X: 3}}); idx != 1 {
		t.Errorf("index after pop = %d, want 1", idx)
	}
	if m.Vertices[1].Pos != (v3.Vec{X: 3}) {
		t.Errorf("vertex 1 = %v", m.Vertices[1].Pos)
	}
}
