// Package scene describes the content of a frame as a render graph.
//
// A [Graph] is a tree of draw commands built fresh every frame. Each node
// references a range of the graph's index stream; the vertex data for
// immediate triangle lists and for rounded rectangles lives in separate
// arrays so that each can be bound to its own pipeline.
//
//	g := scene.New()
//	panel := g.DrawRect(scene.Root, scene.NewDrawRect(scene.Rect{X: 10, Y: 10, Width: 200, Height: 100}).
//		WithColor(scene.Hex("#3366cc")).
//		WithRadius(8))
//	g.DrawImmediate(panel, vertices, []uint16{0, 1, 2})
//
// Graphs are consumed by the GPU context, which uploads the buffers and
// walks the tree depth-first, issuing one indexed draw per node.
package scene
