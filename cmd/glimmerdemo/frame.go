package main

import (
	"math"

	"github.com/gogpu/glimmer/scene"
)

var (
	panelColor  = scene.Hex("#1e2a38")
	accentColor = scene.Hex("#e0a526")
	cardColors  = []scene.Color{scene.Hex("#3366cc"), scene.Hex("#cc3366"), scene.Hex("#33cc99")}
)

// buildFrame fills g with a panel holding a row of bouncing cards, an
// outlined highlight and a spinning triangle.
func buildFrame(g *scene.Graph, t, w, h float32) {
	panel := g.DrawRect(scene.Root, scene.NewDrawRect(scene.NewRect(20, 20, w-20, h-20)).
		WithColor(panelColor).
		WithRadius(16))

	cardW := (w - 80) / float32(len(cardColors)+1)
	for i, c := range cardColors {
		x := 40 + float32(i)*(cardW+20)
		y := 60 + 30*float32(math.Sin(float64(t*2+float32(i))))
		card := g.DrawRect(panel, scene.NewDrawRect(scene.NewRect(x, y, x+cardW, y+cardW*0.6)).
			WithColors(
				scene.Part(scene.Top, c),
				scene.Part(scene.Bottom, c.Lerp(scene.Black, 0.4)),
			).
			WithRadii(scene.Part(scene.Top, float32(12)), scene.Part(scene.Bottom, float32(4))))
		if i == int(t)%len(cardColors) {
			g.DrawRect(card, scene.NewDrawRect(scene.NewRect(x-4, y-4, x+cardW+4, y+cardW*0.6+4)).
				WithColor(accentColor).
				WithRadius(14).
				WithInnerRadius(3))
		}
	}

	cx, cy, r := w*0.75, h*0.65, h*0.2
	verts := make([]scene.Vertex, 3)
	for i := range verts {
		a := float64(t) + float64(i)*2*math.Pi/3
		verts[i] = scene.Vertex{
			Position: scene.Point{X: cx + r*float32(math.Cos(a)), Y: cy + r*float32(math.Sin(a))},
			Color:    cardColors[i],
		}
	}
	g.DrawImmediate(panel, verts, []uint16{0, 1, 2})
}
