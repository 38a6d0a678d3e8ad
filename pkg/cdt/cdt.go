// Package cdt defines the narrow interface to the constrained 2D
// triangulation engine the face triangulator consumes. Implementations
// (poly2tri) sit behind this interface so the backend can be swapped
// without touching the rest of the pipeline.
package cdt

import (
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Edge is a required edge between two indices into the point buffer.
type Edge [2]int

// Triangle is three indices into the input point buffer.
type Triangle [3]int

// Engine triangulates a 2D point set under edge constraints. Output
// triangles index the input points; engines never synthesize points.
// Points that appear in no edge are free (Steiner) points.
type Engine interface {
	Triangulate(points []v2.Vec, edges []Edge) ([]Triangle, error)
}

// svgCanvas is the pixel size of debug dumps.
const svgCanvas = 1024

// DumpSVG writes a visualization of a triangulation input, for offline
// diagnosis of faces the engine rejected. Constraint edges are drawn as
// lines, points as dots.
func DumpSVG(w io.Writer, points []v2.Vec, edges []Edge) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	const margin = 16
	scale := float64(svgCanvas-2*margin) / span
	px := func(p v2.Vec) (int, int) {
		// SVG y grows downward.
		return margin + int((p.X-minX)*scale), svgCanvas - margin - int((p.Y-minY)*scale)
	}

	canvas := svg.New(w)
	canvas.Start(svgCanvas, svgCanvas)
	for _, e := range edges {
		x1, y1 := px(points[e[0]])
		x2, y2 := px(points[e[1]])
		canvas.Line(x1, y1, x2, y2, "stroke:black;stroke-width:1")
	}
	for _, p := range points {
		x, y := px(p)
		canvas.Circle(x, y, 2, "fill:red")
	}
	canvas.End()
}
