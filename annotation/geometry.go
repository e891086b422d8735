package annotation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// RBBoxToPolygon converts a rotated rectangle given by its center, size and
// angle into its four corner points.  Corners are returned in the same order
// as OpenCV's boxPoints so polygons match those produced by Python tooling.
func RBBoxToPolygon(cx, cy, w, h, angle float64, radians bool) [][2]float64 {

	if !radians {
		angle = angle * math.Pi / 180
	}

	center := r2.Vec{X: cx, Y: cy}

	b := math.Cos(angle) * 0.5
	a := math.Sin(angle) * 0.5

	// offsets of the first two corners from the center, the remaining two
	// are their reflections through the center
	p0 := r2.Vec{X: -a*h - b*w, Y: b*h - a*w}
	p1 := r2.Vec{X: a*h - b*w, Y: -b*h - a*w}

	pts := []r2.Vec{
		r2.Add(center, p0),
		r2.Add(center, p1),
		r2.Sub(center, p0),
		r2.Sub(center, p1),
	}

	corners := make([][2]float64, len(pts))

	for i, pt := range pts {
		corners[i] = [2]float64{pt.X, pt.Y}
	}

	return corners
}

// FlattenPolygon flattens corner points into a single x0,y0,x1,y1,...
// sequence
func FlattenPolygon(pts [][2]float64) []float64 {

	flat := make([]float64, 0, len(pts)*2)

	for _, pt := range pts {
		flat = append(flat, pt[0], pt[1])
	}

	return flat
}
