// Package geometry converts pointer positions between rendered surfaces and
// their native coordinate spaces (image pixels or page millimeters).
package geometry

import (
	"image"
	"math"
)

// Point is a position in some coordinate space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Size is the extent of a coordinate surface
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// SizeOf returns the pixel size of an image bounds rectangle
func SizeOf(b image.Rectangle) Size {
	return Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// Rect is an axis-aligned rectangle anchored at its top-left corner
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the y coordinate of the bottom edge
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Contains reports whether p lies strictly inside r
func (r Rect) Contains(p Point) bool {
	return p.X > r.X && p.X < r.Right() && p.Y > r.Y && p.Y < r.Bottom()
}

// Within reports whether r lies entirely inside a surface of size s
func (r Rect) Within(s Size) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= s.W && r.Bottom() <= s.H
}

// Round converts r to integer pixel bounds. Width and height are rounded
// independently of the origin so the result keeps the rounded (w, h); it can
// end one pixel past a surface edge that r itself touches.
func (r Rect) Round() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.W)), y0+int(math.Round(r.H)))
}

// Transform maps a viewport position onto the native space of a surface that
// is currently rendered inside view. view.W and view.H must be positive.
func Transform(p Point, view Rect, native Size) Point {
	sx, sy := Scale(view, native)
	return Point{
		X: (p.X - view.X) * sx,
		Y: (p.Y - view.Y) * sy,
	}
}

// Scale returns native units per rendered unit along each axis
func Scale(view Rect, native Size) (float64, float64) {
	return native.W / view.W, native.H / view.H
}

// Clamp bounds v to [lo, hi]. If the range is empty lo wins.
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
