// Package mesh owns the vertex and triangle buffers accumulated across
// all faces of a model, and exports them as binary STL. Both buffers
// are append-only: indices handed out are never invalidated.
package mesh

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Vertex is a mesh vertex. It is immutable once appended.
type Vertex struct {
	Pos   v3.Vec
	Norm  v3.Vec
	Color v3.Vec
}

// Triangle indexes three vertices, wound so that the cross product of
// its edges points along the owning surface's outward normal.
type Triangle struct {
	V [3]uint32
}

// Mesh is the accumulated output of a triangulation run.
type Mesh struct {
	Vertices  []Vertex
	Triangles []Triangle
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{}
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(v Vertex) uint32 {
	m.Vertices = append(m.Vertices, v)
	return uint32(len(m.Vertices) - 1)
}

// PopVertex removes the most recently appended vertex. It exists for
// loop closure, where the duplicated closing point is dropped again
// immediately after being pushed; emitted indices are never affected.
func (m *Mesh) PopVertex() {
	m.Vertices = m.Vertices[:len(m.Vertices)-1]
}

// AddTriangle appends a triangle over existing vertex indices.
func (m *Mesh) AddTriangle(a, b, c uint32) {
	m.Triangles = append(m.Triangles, Triangle{V: [3]uint32{a, b, c}})
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles)
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}
