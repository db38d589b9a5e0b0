package scene

// Corner indices into DrawRect colors, matching the vertex order.
const (
	cornerTopLeft = iota
	cornerTopRight
	cornerBottomRight
	cornerBottomLeft
)

// Radius indices, in rounded box distance field quadrant order.
const (
	radiusBottomRight = iota
	radiusTopRight
	radiusBottomLeft
	radiusTopLeft
)

// Side selects the edge or corner a RectPart applies to.
type Side uint8

// Edges apply to the two corners they join; corners apply to one.
const (
	Left        Side = iota // top-left and bottom-left corners
	Right                   // top-right and bottom-right corners
	Top                     // top-left and top-right corners
	Bottom                  // bottom-left and bottom-right corners
	TopLeft                 // top-left corner
	TopRight                // top-right corner
	BottomLeft              // bottom-left corner
	BottomRight             // bottom-right corner
)

// RectPart pairs a value with the side or corner of a rectangle it applies to.
type RectPart[T any] struct {
	Side  Side
	Value T
}

// Part returns a RectPart for side.
func Part[T any](side Side, v T) RectPart[T] {
	return RectPart[T]{Side: side, Value: v}
}

// DrawRect describes a filled rectangle with optional rounded corners, a
// per-corner color gradient, and an inner radius for ring shapes.
//
// The zero value is not useful; start from NewDrawRect.
type DrawRect struct {
	rect       Rect
	colors     [4]Color // TL, TR, BR, BL
	outerRadii [4]float32
	innerRadii [4]float32
}

// NewDrawRect returns a black, square-cornered rectangle.
func NewDrawRect(r Rect) *DrawRect {
	return &DrawRect{
		rect:   r,
		colors: [4]Color{Black, Black, Black, Black},
	}
}

// Rect returns the rectangle bounds.
func (d *DrawRect) Rect() Rect { return d.rect }

// WithColor fills the whole rectangle with c.
func (d *DrawRect) WithColor(c Color) *DrawRect {
	d.colors = [4]Color{c, c, c, c}
	return d
}

// WithColors sets the color of individual edges or corners. Later parts
// override earlier ones where they overlap.
func (d *DrawRect) WithColors(parts ...RectPart[Color]) *DrawRect {
	for _, p := range parts {
		switch p.Side {
		case Left:
			d.colors[cornerTopLeft] = p.Value
			d.colors[cornerBottomLeft] = p.Value
		case Right:
			d.colors[cornerTopRight] = p.Value
			d.colors[cornerBottomRight] = p.Value
		case Top:
			d.colors[cornerTopLeft] = p.Value
			d.colors[cornerTopRight] = p.Value
		case Bottom:
			d.colors[cornerBottomRight] = p.Value
			d.colors[cornerBottomLeft] = p.Value
		case TopLeft:
			d.colors[cornerTopLeft] = p.Value
		case TopRight:
			d.colors[cornerTopRight] = p.Value
		case BottomLeft:
			d.colors[cornerBottomLeft] = p.Value
		case BottomRight:
			d.colors[cornerBottomRight] = p.Value
		}
	}
	return d
}

// WithRadius rounds all four corners.
func (d *DrawRect) WithRadius(r float32) *DrawRect {
	d.outerRadii = [4]float32{r, r, r, r}
	return d
}

// WithRadii sets the corner radius of individual edges or corners. An edge
// sets both of its corners.
func (d *DrawRect) WithRadii(parts ...RectPart[float32]) *DrawRect {
	setRadii(&d.outerRadii, parts)
	return d
}

// WithInnerRadius turns the rectangle into an outline of width r. The hole
// is the rectangle inset by r, with its corner radii shrunk to match.
// Zero keeps the rectangle filled.
func (d *DrawRect) WithInnerRadius(r float32) *DrawRect {
	d.innerRadii = [4]float32{r, r, r, r}
	return d
}

func setRadii(radii *[4]float32, parts []RectPart[float32]) {
	for _, p := range parts {
		switch p.Side {
		case Left:
			radii[radiusBottomLeft] = p.Value
			radii[radiusTopLeft] = p.Value
		case Right:
			radii[radiusBottomRight] = p.Value
			radii[radiusTopRight] = p.Value
		case Top:
			radii[radiusTopRight] = p.Value
			radii[radiusTopLeft] = p.Value
		case Bottom:
			radii[radiusBottomRight] = p.Value
			radii[radiusBottomLeft] = p.Value
		case TopLeft:
			radii[radiusTopLeft] = p.Value
		case TopRight:
			radii[radiusTopRight] = p.Value
		case BottomLeft:
			radii[radiusBottomLeft] = p.Value
		case BottomRight:
			radii[radiusBottomRight] = p.Value
		}
	}
}

var rectIndices = [6]uint16{0, 1, 2, 0, 2, 3}

// vertices returns the four corner vertices, in top-left, top-right,
// bottom-right, bottom-left order, and the indices of the two triangles.
func (d *DrawRect) vertices() ([4]RectVertex, [6]uint16) {
	r := d.rect
	v := RectVertex{
		Size:       r.Extent(),
		Center:     r.Center(),
		OuterRadii: d.outerRadii,
		InnerRadii: d.innerRadii,
	}
	var out [4]RectVertex
	for i, pos := range [4]Point{r.TopLeft(), r.TopRight(), r.BottomRight(), r.BottomLeft()} {
		out[i] = v
		out[i].Position = pos
		out[i].Color = d.colors[i]
	}
	return out, rectIndices
}
