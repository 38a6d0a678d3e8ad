// Package poly2tri implements the cdt.Engine interface using the
// ByteArena/poly2tri-go sweep-line constrained Delaunay triangulator.
package poly2tri

import (
	"fmt"
	"sort"

	p2t "github.com/ByteArena/poly2tri-go"
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/chazu/stepmesh/pkg/cdt"
)

// Compile-time interface check.
var _ cdt.Engine = (*Engine)(nil)

// Engine adapts poly2tri-go behind the cdt.Engine interface.
type Engine struct{}

// New returns a new Engine.
func New() *Engine {
	return &Engine{}
}

// Triangulate reconstructs closed contours from the constraint edges,
// feeds them to poly2tri as outer contour plus holes, and maps the
// output triangles back to input indices by point identity. Points
// outside every contour cycle are added as Steiner points. poly2tri
// reports degenerate or self-intersecting input by panicking, which is
// converted into an error here.
func (e *Engine) Triangulate(points []v2.Vec, edges []cdt.Edge) (tris []cdt.Triangle, err error) {
	defer func() {
		if r := recover(); r != nil {
			tris = nil
			err = fmt.Errorf("poly2tri: %v", r)
		}
	}()

	cycles, lone, err := buildCycles(len(points), edges)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, nil
	}

	pts := make([]*p2t.Point, len(points))
	index := make(map[*p2t.Point]int, len(points))
	for i, p := range points {
		pt := p2t.NewPoint(p.X, p.Y)
		pts[i] = pt
		index[pt] = i
	}

	contour := func(cycle []int) []*p2t.Point {
		out := make([]*p2t.Point, len(cycle))
		for i, idx := range cycle {
			out[i] = pts[idx]
		}
		return out
	}

	outer := outerCycle(points, cycles)
	swctx := p2t.NewSweepContext(contour(cycles[outer]), false)
	for i, c := range cycles {
		if i != outer {
			swctx.AddHole(contour(c))
		}
	}
	for _, idx := range lone {
		swctx.AddPoint(pts[idx])
	}

	swctx.Triangulate()

	for _, t := range swctx.GetTriangles() {
		var out cdt.Triangle
		for i := 0; i < 3; i++ {
			idx, ok := index[t.Points[i]]
			if !ok {
				return nil, fmt.Errorf("poly2tri: output references a point not in the input")
			}
			out[i] = idx
		}
		tris = append(tris, out)
	}
	return tris, nil
}

// buildCycles partitions the constraint edges into closed cycles of
// point indices and collects the indices no edge touches.
func buildCycles(numPoints int, edges []cdt.Edge) ([][]int, []int, error) {
	next := make(map[int]int, len(edges))
	inEdge := make([]bool, numPoints)
	for _, e := range edges {
		if e[0] < 0 || e[0] >= numPoints || e[1] < 0 || e[1] >= numPoints {
			return nil, nil, fmt.Errorf("cdt: edge (%d, %d) out of range", e[0], e[1])
		}
		if _, dup := next[e[0]]; dup {
			return nil, nil, fmt.Errorf("cdt: point %d starts two constraint edges", e[0])
		}
		next[e[0]] = e[1]
		inEdge[e[0]] = true
		inEdge[e[1]] = true
	}

	starts := make([]int, 0, len(next))
	for i := range next {
		starts = append(starts, i)
	}
	sort.Ints(starts)

	visited := make(map[int]bool, len(next))
	var cycles [][]int
	for _, start := range starts {
		if visited[start] {
			continue
		}
		cycle := []int{start}
		visited[start] = true
		for at := next[start]; at != start; {
			n, ok := next[at]
			if !ok || visited[at] {
				return nil, nil, fmt.Errorf("cdt: constraint edges do not close a cycle at point %d", at)
			}
			cycle = append(cycle, at)
			visited[at] = true
			at = n
		}
		if len(cycle) < 3 {
			return nil, nil, fmt.Errorf("cdt: constraint cycle through point %d has only %d points", start, len(cycle))
		}
		cycles = append(cycles, cycle)
	}

	var lone []int
	for i := 0; i < numPoints; i++ {
		if !inEdge[i] {
			lone = append(lone, i)
		}
	}
	return cycles, lone, nil
}

// outerCycle picks the contour enclosing the others: the cycle with the
// largest absolute signed area.
func outerCycle(points []v2.Vec, cycles [][]int) int {
	best, bestArea := 0, -1.0
	for i, c := range cycles {
		var area float64
		for j, idx := range c {
			a := points[idx]
			b := points[c[(j+1)%len(c)]]
			area += a.X*b.Y - b.X*a.Y
		}
		if area < 0 {
			area = -area
		}
		if area > bestArea {
			best, bestArea = i, area
		}
	}
	return best
}
