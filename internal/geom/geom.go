// Package geom provides the abstract 2D geometry the repair engine works in.
// Callers are responsible for translating screen coordinates into the frame
// the repair specs were authored in; nothing here performs translation.
package geom

import "math"

// Point is a position in the element's coordinate frame.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is the extent of an element on the tool.
type Size struct {
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
