// Package gpu drives the hardware abstraction layer of gogpu/wgpu.
//
// It owns the pieces that talk to a hal.Device and hal.Queue:
//
//   - SubmissionQueue tracks submitted command buffers and recycles their
//     encoders once the GPU has finished with them.
//   - UploadHeap is a persistently mapped buffer fed by a ring allocator;
//     every per-frame vertex, index and uniform byte goes through it.
//   - ViewTable hands out texture view slots from a block allocator and
//     caches the bind group of each sampled image.
//   - Pipelines holds the polygon and rounded rectangle render pipelines.
//   - Recorder turns a scene graph into draw calls inside a render pass.
//   - Swapchain wraps a hal.Surface.
//
// Nothing in this package is safe for concurrent use. The owning context
// serializes all access.
package gpu
