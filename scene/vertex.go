package scene

// Point is a position in pixels.
type Point struct {
	X, Y float32
}

// Extent is a size in pixels.
type Extent struct {
	Width, Height float32
}

// Rect is an axis-aligned rectangle in pixels with its origin at the
// top-left corner.
type Rect struct {
	X, Y          float32
	Width, Height float32
}

// NewRect returns the rectangle spanning the two corners.
func NewRect(x0, y0, x1, y1 float32) Rect {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (r Rect) TopLeft() Point     { return Point{r.X, r.Y} }
func (r Rect) TopRight() Point    { return Point{r.X + r.Width, r.Y} }
func (r Rect) BottomRight() Point { return Point{r.X + r.Width, r.Y + r.Height} }
func (r Rect) BottomLeft() Point  { return Point{r.X, r.Y + r.Height} }
func (r Rect) Extent() Extent     { return Extent{r.Width, r.Height} }

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{r.X + r.Width/2, r.Y + r.Height/2}
}

// Vertex is the input of the polygon pipeline.
//
// UV addresses the bound texture; immediate draws without an image use the
// 1x1 white texture, so the vertex color is used unchanged.
type Vertex struct {
	Position Point
	UV       Point
	Color    Color
}

// VertexSize is the size of Vertex in bytes.
const VertexSize = 32

// RectVertex is the input of the rounded rectangle pipeline. All four
// vertices of a rectangle carry the same geometry; the fragment shader
// evaluates a rounded box distance field from it.
//
// Radii are ordered bottom-right, top-right, bottom-left, top-left.
type RectVertex struct {
	Position   Point
	Size       Extent
	Center     Point
	OuterRadii [4]float32
	InnerRadii [4]float32
	Color      Color
}

// RectVertexSize is the size of RectVertex in bytes.
const RectVertexSize = 72
