// Package triangulate converts the advanced faces of a decoded B-rep
// model into a triangle mesh. For each face it resolves the underlying
// parametric surface, walks the boundary loops into ordered 3D
// polylines, projects them into the surface's 2D parameter space,
// triangulates under boundary constraints and lifts the result back to
// 3D with consistent outward winding.
//
// Schema violations in the input abort the run; geometric failures
// scoped to one face (unsupported surfaces, free-form boundary curves,
// rejected triangulation input) skip that face with a diagnostic and
// leave every other face's output intact.
package triangulate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"

	"github.com/chazu/stepmesh/pkg/cdt"
	"github.com/chazu/stepmesh/pkg/cdt/poly2tri"
	"github.com/chazu/stepmesh/pkg/mesh"
	"github.com/chazu/stepmesh/pkg/step"
	"github.com/chazu/stepmesh/pkg/surface"
)

// Triangulator walks a store's advanced faces and accumulates the
// resulting mesh. It reads the store but never mutates it.
type Triangulator struct {
	store    *step.Store
	mesh     *mesh.Mesh
	engine   cdt.Engine
	log      *zap.Logger
	debugDir string
}

// Option configures a Triangulator.
type Option func(*Triangulator)

// WithEngine replaces the default constrained-triangulation engine.
func WithEngine(e cdt.Engine) Option {
	return func(t *Triangulator) { t.engine = e }
}

// WithLogger sets the diagnostics logger. The default discards all
// output.
func WithLogger(l *zap.Logger) Option {
	return func(t *Triangulator) { t.log = l }
}

// WithDebugDir enables SVG dumps of triangulation inputs the engine
// rejected, written into dir as out<surface-id>.svg.
func WithDebugDir(dir string) Option {
	return func(t *Triangulator) { t.debugDir = dir }
}

// New returns a Triangulator over the given store.
func New(store *step.Store, opts ...Option) *Triangulator {
	t := &Triangulator{
		store:  store,
		mesh:   mesh.New(),
		engine: poly2tri.New(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Triangulate converts every advanced face of the model into one mesh.
func Triangulate(store *step.Store, opts ...Option) (*mesh.Mesh, error) {
	t := New(store, opts...)
	if err := t.Run(); err != nil {
		return nil, err
	}
	return t.Mesh(), nil
}

// Run processes every advanced face in the store, in store order.
func (t *Triangulator) Run() error {
	for id := step.ID(0); int(id) < t.store.Len(); id++ {
		face, ok := t.store.At(id).(step.AdvancedFace)
		if !ok {
			continue
		}
		if err := t.advancedFace(id, face); err != nil {
			return err
		}
	}
	return nil
}

// Mesh returns the accumulated mesh.
func (t *Triangulator) Mesh() *mesh.Mesh {
	return t.mesh
}

// SaveSTL writes the accumulated mesh as binary STL.
func (t *Triangulator) SaveSTL(path string) error {
	return t.mesh.SaveSTL(path)
}

// kindErr builds a schema-violation error in the step package's format.
func kindErr(id step.ID, want string, got step.Entity) error {
	return fmt.Errorf("%w: entity #%d: expected %s, got %T", step.ErrSchema, id, want, got)
}

// advancedFace projects the face's boundary loops into the surface's
// parameter space, triangulates them and appends the lifted triangles.
// Per-face geometric failures are logged and swallowed; only schema
// violations propagate.
func (t *Triangulator) advancedFace(id step.ID, face step.AdvancedFace) error {
	offset := uint32(t.mesh.VertexCount())

	s, err := surface.FromEntity(t.store, face.Surface)
	if err != nil {
		if errors.Is(err, surface.ErrUnsupported) {
			t.log.Warn("skipping face on unsupported surface",
				zap.Int("face", int(id)), zap.Error(err))
			return nil
		}
		return err
	}

	var pts []v2.Vec
	var edges []cdt.Edge
	for _, bid := range face.Bounds {
		fb, ok := t.store.At(bid).(step.FaceBound)
		if !ok {
			return kindErr(bid, "face_bound", t.store.At(bid))
		}
		bc, err := t.faceBounds(fb.Bound, fb.Orientation)
		if err != nil {
			return err
		}

		switch len(bc) {
		case 0:
			// Every curve of the loop was unsupported; nothing to add.
			t.log.Warn("face bound produced no points", zap.Int("face", int(id)))
			continue

		case 1:
			// A single-vertex loop, as found at cone apexes: a Steiner
			// point with no associated contour.
			proj := s.Lower(bc[0])
			pts = append(pts, proj)
			t.mesh.AddVertex(mesh.Vertex{Pos: bc[0], Norm: s.Normal(bc[0], proj)})
			continue
		}

		start := len(pts)
		for _, pt := range bc {
			// The contour marches forward.
			edges = append(edges, cdt.Edge{len(pts), len(pts) + 1})
			proj := s.Lower(pt)
			pts = append(pts, proj)
			t.mesh.AddVertex(mesh.Vertex{Pos: pt, Norm: s.Normal(pt, proj)})
		}
		// The last point duplicates the first to close the loop. Drop
		// it and rewire the final edge back to the start index.
		pts = pts[:len(pts)-1]
		t.mesh.PopVertex()
		edges = edges[:len(edges)-1]
		edges[len(edges)-1][1] = start
	}

	tris, err := t.engine.Triangulate(pts, edges)
	if err != nil {
		t.log.Warn("triangulation failed",
			zap.Int("face", int(id)),
			zap.Int("surface", int(face.Surface)),
			zap.Error(err))
		t.dumpDebug(face.Surface, pts, edges)
		return nil
	}

	for _, tri := range tris {
		a := offset + uint32(tri[0])
		b := offset + uint32(tri[1])
		c := offset + uint32(tri[2])
		if face.SameSense != s.Sign() {
			t.mesh.AddTriangle(a, b, c)
		} else {
			t.mesh.AddTriangle(a, c, b)
		}
	}
	return nil
}

// dumpDebug persists the 2D input of a failed face for offline
// diagnosis, if a debug directory is configured.
func (t *Triangulator) dumpDebug(surfaceID step.ID, pts []v2.Vec, edges []cdt.Edge) {
	if t.debugDir == "" {
		return
	}
	path := filepath.Join(t.debugDir, fmt.Sprintf("out%d.svg", surfaceID))
	f, err := os.Create(path)
	if err != nil {
		t.log.Warn("could not write debug SVG", zap.String("path", path), zap.Error(err))
		return
	}
	cdt.DumpSVG(f, pts, edges)
	if err := f.Close(); err != nil {
		t.log.Warn("could not write debug SVG", zap.String("path", path), zap.Error(err))
	}
}

// faceBounds resolves a bound into an ordered 3D polyline. Edge loops
// yield a closed contour (reversed when orientation is false); vertex
// loops yield a single point.
func (t *Triangulator) faceBounds(bound step.ID, orientation bool) ([]v3.Vec, error) {
	switch e := t.store.At(bound).(type) {
	case step.EdgeLoop:
		d, err := t.edgeLoop(e.Edges)
		if err != nil {
			return nil, err
		}
		if !orientation {
			for i, j := 0, len(d)-1; i < j; i, j = i+1, j-1 {
				d[i], d[j] = d[j], d[i]
			}
		}
		return d, nil

	case step.VertexLoop:
		u, err := t.store.VertexPoint(e.Vertex)
		if err != nil {
			return nil, err
		}
		return []v3.Vec{u}, nil

	default:
		return nil, kindErr(bound, "edge_loop or vertex_loop", t.store.At(bound))
	}
}

// edgeLoop concatenates the samples of each oriented edge. The first
// point of each edge duplicates the last point of the previous one and
// is dropped.
func (t *Triangulator) edgeLoop(edges []step.ID) ([]v3.Vec, error) {
	var out []v3.Vec
	for i, eid := range edges {
		oe, ok := t.store.At(eid).(step.OrientedEdge)
		if !ok {
			return nil, kindErr(eid, "oriented_edge", t.store.At(eid))
		}
		if i > 0 && len(out) > 0 {
			out = out[:len(out)-1]
		}
		o, err := t.orientedEdge(oe.Edge, oe.Orientation)
		if err != nil {
			return nil, err
		}
		out = append(out, o...)
	}
	return out, nil
}

// orientedEdge resolves the underlying edge curve, swapping start and
// end per the traversal orientation.
func (t *Triangulator) orientedEdge(element step.ID, orientation bool) ([]v3.Vec, error) {
	ec, ok := t.store.At(element).(step.EdgeCurve)
	if !ok {
		return nil, kindErr(element, "edge_curve", t.store.At(element))
	}
	start, end := ec.Start, ec.End
	if !orientation {
		start, end = end, start
	}
	return t.edgeCurve(start, end, ec.Geometry, ec.SameSense, !orientation)
}

// edgeCurve samples the geometry between two resolved endpoints.
// Free-form curves are not evaluated; they contribute no points, which
// can leave the enclosing loop malformed (the face is then typically
// rejected by the triangulation engine and skipped).
func (t *Triangulator) edgeCurve(start, end, geometry step.ID, sameSense, flip bool) ([]v3.Vec, error) {
	u, err := t.store.VertexPoint(start)
	if err != nil {
		return nil, err
	}
	v, err := t.store.VertexPoint(end)
	if err != nil {
		return nil, err
	}

	switch g := t.store.At(geometry).(type) {
	case step.Line:
		return t.line(u, v, g.Point, g.Dir)
	case step.Circle:
		return t.ellipse(u, v, g.Position, g.Radius, g.Radius, start == end, sameSense != flip)
	case step.Ellipse:
		return t.ellipse(u, v, g.Position, g.Radius1, g.Radius2, start == end, sameSense != flip)
	case step.BSplineCurveWithKnots:
		t.log.Warn("skipping b-spline boundary curve", zap.Int("curve", int(geometry)))
		return nil, nil
	default:
		return nil, kindErr(geometry, "a bounded curve", g)
	}
}
