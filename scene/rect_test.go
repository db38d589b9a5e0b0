package scene

import (
	"image/color"
	"testing"
)

func TestDrawRectVertices(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 100, Height: 50}
	verts, idx := NewDrawRect(r).WithColor(Red).vertices()

	wantPos := []Point{{10, 20}, {110, 20}, {110, 70}, {10, 70}}
	for i, v := range verts {
		if v.Position != wantPos[i] {
			t.Errorf("vertex %d position = %v, want %v", i, v.Position, wantPos[i])
		}
		if v.Center != (Point{60, 45}) {
			t.Errorf("vertex %d center = %v", i, v.Center)
		}
		if v.Size != (Extent{100, 50}) {
			t.Errorf("vertex %d size = %v", i, v.Size)
		}
		if v.Color != Red {
			t.Errorf("vertex %d color = %v", i, v.Color)
		}
	}
	if idx != [6]uint16{0, 1, 2, 0, 2, 3} {
		t.Errorf("indices = %v", idx)
	}
}

func TestDrawRectColors(t *testing.T) {
	tests := []struct {
		name  string
		parts []RectPart[Color]
		want  [4]Color // TL, TR, BR, BL
	}{
		{"left", []RectPart[Color]{Part(Left, Red)}, [4]Color{Red, Black, Black, Red}},
		{"right", []RectPart[Color]{Part(Right, Red)}, [4]Color{Black, Red, Red, Black}},
		{"top", []RectPart[Color]{Part(Top, Red)}, [4]Color{Red, Red, Black, Black}},
		{"bottom", []RectPart[Color]{Part(Bottom, Red)}, [4]Color{Black, Black, Red, Red}},
		{"corners", []RectPart[Color]{
			Part(TopLeft, Red), Part(TopRight, Green), Part(BottomRight, Blue), Part(BottomLeft, White),
		}, [4]Color{Red, Green, Blue, White}},
		{"override", []RectPart[Color]{Part(Top, Red), Part(TopLeft, Blue)}, [4]Color{Blue, Red, Black, Black}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verts, _ := NewDrawRect(Rect{Width: 1, Height: 1}).WithColors(tt.parts...).vertices()
			for i := range verts {
				if verts[i].Color != tt.want[i] {
					t.Errorf("corner %d = %v, want %v", i, verts[i].Color, tt.want[i])
				}
			}
		})
	}
}

func TestDrawRectRadii(t *testing.T) {
	tests := []struct {
		name  string
		parts []RectPart[float32]
		want  [4]float32 // BR, TR, BL, TL
	}{
		{"left", []RectPart[float32]{Part[float32](Left, 4)}, [4]float32{0, 0, 4, 4}},
		{"right", []RectPart[float32]{Part[float32](Right, 4)}, [4]float32{4, 4, 0, 0}},
		{"top", []RectPart[float32]{Part[float32](Top, 4)}, [4]float32{0, 4, 0, 4}},
		{"bottom", []RectPart[float32]{Part[float32](Bottom, 4)}, [4]float32{4, 0, 4, 0}},
		{"top left", []RectPart[float32]{Part[float32](TopLeft, 2)}, [4]float32{0, 0, 0, 2}},
		{"bottom right", []RectPart[float32]{Part[float32](BottomRight, 2)}, [4]float32{2, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verts, _ := NewDrawRect(Rect{Width: 1, Height: 1}).WithRadii(tt.parts...).vertices()
			if verts[0].OuterRadii != tt.want {
				t.Errorf("radii = %v, want %v", verts[0].OuterRadii, tt.want)
			}
		})
	}

	verts, _ := NewDrawRect(Rect{}).WithRadius(3).WithInnerRadius(1).vertices()
	if verts[2].OuterRadii != [4]float32{3, 3, 3, 3} || verts[2].InnerRadii != [4]float32{1, 1, 1, 1} {
		t.Errorf("uniform radii = %v / %v", verts[2].OuterRadii, verts[2].InnerRadii)
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#ff0000", color.NRGBA{255, 0, 0, 255}, false},
		{"00ff0080", color.NRGBA{0, 255, 0, 128}, false},
		{"#f80", color.NRGBA{255, 136, 0, 255}, false},
		{"f808", color.NRGBA{255, 136, 0, 136}, false},
		{"#12345", color.NRGBA{}, true},
		{"zzzzzz", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		c, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && c.NRGBA() != tt.want {
			t.Errorf("ParseHex(%q) = %v, want %v", tt.in, c.NRGBA(), tt.want)
		}
	}
	if Hex("nope") != Black {
		t.Error("Hex of an invalid string should be black")
	}
}

func TestColorConversions(t *testing.T) {
	c := FromColor(color.NRGBA{R: 255, G: 0, B: 0, A: 128})
	if c.R != 1 || c.A != float32(128)/255 {
		t.Errorf("FromColor = %+v", c)
	}
	p := RGBA(1, 0.5, 0, 0.5).Premultiply()
	if p != (Color{0.5, 0.25, 0, 0.5}) {
		t.Errorf("Premultiply = %+v", p)
	}
	if m := Black.Lerp(White, 0.5); m != (Color{0.5, 0.5, 0.5, 1}) {
		t.Errorf("Lerp = %+v", m)
	}
	if s := Red.String(); s != "#ff0000ff" {
		t.Errorf("String = %q", s)
	}
}
