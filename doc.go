// Package glimmer is a low-level 2D rendering core for the GoGPU ecosystem.
//
// # Overview
//
// glimmer turns a per-frame scene description into GPU command
// submissions. Applications build a [scene.Graph] every frame, and a
// [Context] uploads its geometry, records one render pass and submits it.
// Several frames may be in flight at once; memory and resources they use
// are reclaimed only after the GPU reports them complete.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/glimmer"
//	    "github.com/gogpu/glimmer/scene"
//	    _ "github.com/gogpu/wgpu/hal/allbackends"
//	)
//
//	ctx, err := glimmer.NewContext()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close()
//
//	target, _ := ctx.CreateImage(800, 600, glimmer.FormatRGBA8, glimmer.ColorSpaceSRGB)
//
//	g := scene.New()
//	g.DrawRect(scene.Root, scene.NewDrawRect(scene.NewRect(100, 100, 300, 200)).
//	    WithColor(scene.Hex("#3366cc")).
//	    WithRadius(12))
//	if err := ctx.Draw(target, g); err != nil {
//	    log.Print(err)
//	}
//
// # Presenting to a window
//
// The host application owns the window and its hal.Surface. glimmer only
// needs a [gpucontext.WindowProvider] to query the size:
//
//	s, err := ctx.CreateSurface(halSurface, window)
//	...
//	img, err := ctx.GetNextImage(s)
//	err = ctx.Draw(img, g)
//	err = ctx.Present(s)
//
// Call [Context.Resize] when the window size changes.
//
// # Memory
//
// Vertex, index, uniform and pixel uploads share one persistently mapped
// ring buffer (20 MiB by default, see [WithUploadHeapSize]). When a frame
// does not fit, Draw returns an error wrapping [ErrFrameDropped] and
// nothing is submitted. Image view slots come from a fixed table sized by
// [WithMaxTextures].
//
// # Backends
//
// glimmer renders through github.com/gogpu/wgpu/hal. Backends register
// themselves when their package is imported; the noop backend is enough
// for tests and headless runs.
//
// # Logging
//
// glimmer is silent by default. Use [SetLogger] to route its log/slog
// output to a handler of your choice.
package glimmer
