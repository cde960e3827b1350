// Package geometry places three ranging nodes in a plane from their
// pairwise distances.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidTriangle is returned when the three distances cannot form a
// triangle.
var ErrInvalidTriangle = errors.New("distances do not form a triangle")

// Layout holds node positions. Node 0 sits at the origin and node 1 on the
// positive x axis.
type Layout struct {
	Nodes [3]r2.Vec
}

// Triangulate places node 2 using the law of cosines. The positive y
// solution is returned; the mirror image is equally consistent.
func Triangulate(d01, d02, d12 float64) (Layout, error) {
	for _, d := range []float64{d01, d02, d12} {
		if !(d > 0) || math.IsInf(d, 0) {
			return Layout{}, fmt.Errorf("%w: non-positive distance %v", ErrInvalidTriangle, d)
		}
	}
	if d01+d02 < d12 || d01+d12 < d02 || d02+d12 < d01 {
		return Layout{}, fmt.Errorf("%w: %v, %v, %v violate the triangle inequality", ErrInvalidTriangle, d01, d02, d12)
	}

	x := (d01*d01 + d02*d02 - d12*d12) / (2 * d01)
	// Rounding can push a degenerate triangle slightly negative.
	y := math.Sqrt(math.Max(0, d02*d02-x*x))

	return Layout{Nodes: [3]r2.Vec{
		{},
		{X: d01},
		{X: x, Y: y},
	}}, nil
}

// Distances returns d01, d02 and d12 recomputed from the node positions.
func (l Layout) Distances() (d01, d02, d12 float64) {
	return r2.Norm(r2.Sub(l.Nodes[1], l.Nodes[0])),
		r2.Norm(r2.Sub(l.Nodes[2], l.Nodes[0])),
		r2.Norm(r2.Sub(l.Nodes[2], l.Nodes[1]))
}

// String formats the layout as three coordinate pairs.
func (l Layout) String() string {
	return fmt.Sprintf("node0=(%.2f, %.2f) node1=(%.2f, %.2f) node2=(%.2f, %.2f)",
		l.Nodes[0].X, l.Nodes[0].Y,
		l.Nodes[1].X, l.Nodes[1].Y,
		l.Nodes[2].X, l.Nodes[2].Y)
}
