package gpu

import (
	"fmt"

	"github.com/gogpu/glimmer/internal/memory"
	"github.com/gogpu/glimmer/scene"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// FrameBuffers locates a graph's uploaded data inside the upload heap.
// Empty allocations mean the graph had no data of that kind.
type FrameBuffers struct {
	Buffer       hal.Buffer
	Vertices     memory.Allocation
	RectVertices memory.Allocation
	Indices      memory.Allocation
}

// RenderTarget is the view a graph is drawn into.
type RenderTarget struct {
	View   hal.TextureView
	Width  uint32
	Height uint32
}

// FrameParams are the per-draw inputs of RecordGraph.
type FrameParams struct {
	Target RenderTarget

	// Clear is the color the target is cleared to. When Load is set the
	// previous contents are kept instead.
	Clear gputypes.Color
	Load  bool

	// Viewport binds the viewport uniform (group 0 of both pipelines).
	Viewport hal.BindGroup

	// Texture binds the image sampled by immediate draws (group 1 of the
	// polygon pipeline).
	Texture hal.BindGroup
}

// UploadGraph copies the graph's vertex and index data into the frame.
func UploadGraph(frame *memory.FrameAllocator, g *scene.Graph) (FrameBuffers, error) {
	var bufs FrameBuffers
	var err error
	if bufs.Vertices, err = memory.UploadSliceAligned(frame, g.Vertices, VertexAlignment); err != nil {
		return FrameBuffers{}, fmt.Errorf("upload vertices: %w", err)
	}
	if bufs.RectVertices, err = memory.UploadSliceAligned(frame, g.RectVertices, VertexAlignment); err != nil {
		return FrameBuffers{}, fmt.Errorf("upload rect vertices: %w", err)
	}
	if bufs.Indices, err = memory.UploadSliceAligned(frame, g.Indices, VertexAlignment); err != nil {
		return FrameBuffers{}, fmt.Errorf("upload indices: %w", err)
	}
	return bufs, nil
}

// UploadViewport writes the viewport uniform for a width x height target.
func UploadViewport(frame *memory.FrameAllocator, width, height uint32) (memory.Allocation, error) {
	u := [4]float32{float32(width), float32(height), 0, 0}
	alloc, err := memory.UploadSliceAligned(frame, u[:], UniformAlignment)
	if err != nil {
		return memory.Allocation{}, fmt.Errorf("upload viewport: %w", err)
	}
	return alloc, nil
}

// RecordGraph records one render pass drawing g into the target and
// returns the number of draw calls issued.
//
// Nodes are visited depth first, so parents are drawn below their
// children. The pipeline is only rebound when the command kind changes.
func RecordGraph(enc hal.CommandEncoder, set *PipelineSet, g *scene.Graph, bufs FrameBuffers, p FrameParams) int {
	load := gputypes.LoadOpClear
	if p.Load {
		load = gputypes.LoadOpLoad
	}
	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "glimmer_draw",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       p.Target.View,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: p.Clear,
		}},
	})
	defer pass.End()

	if len(g.Indices) == 0 {
		return 0
	}

	pass.SetViewport(0, 0, float32(p.Target.Width), float32(p.Target.Height), 0, 1)
	pass.SetScissorRect(0, 0, p.Target.Width, p.Target.Height)
	pass.SetIndexBuffer(bufs.Buffer, gputypes.IndexFormatUint16, bufs.Indices.HeapOffset)

	draws := 0
	bound := scene.CommandRoot
	g.Walk(func(_ scene.NodeID, cmd scene.Command) bool {
		if cmd.NumIndices == 0 {
			return true
		}
		if cmd.Kind != bound {
			switch cmd.Kind {
			case scene.CommandDrawImmediate:
				pass.SetPipeline(set.Polygon)
				pass.SetBindGroup(0, p.Viewport, nil)
				pass.SetBindGroup(1, p.Texture, nil)
				pass.SetVertexBuffer(0, bufs.Buffer, bufs.Vertices.HeapOffset)
			case scene.CommandDrawRect:
				pass.SetPipeline(set.Rect)
				pass.SetBindGroup(0, p.Viewport, nil)
				pass.SetVertexBuffer(0, bufs.Buffer, bufs.RectVertices.HeapOffset)
			default:
				return true
			}
			bound = cmd.Kind
		}
		pass.DrawIndexed(cmd.NumIndices, 1, cmd.FirstIndex, 0, 0)
		draws++
		return true
	})
	return draws
}

// RecordTextureUpload copies rows from the upload heap into tex and leaves
// it ready for sampling. bytesPerRow must be a multiple of
// CopyPitchAlignment.
func RecordTextureUpload(enc hal.CommandEncoder, tex *Texture, buf hal.Buffer, src memory.Allocation, bytesPerRow uint32) {
	tex.Transition(enc, gputypes.TextureUsageCopyDst)
	enc.CopyBufferToTexture(buf, tex.Raw, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       src.HeapOffset,
			BytesPerRow:  bytesPerRow,
			RowsPerImage: tex.Height,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture: tex.Raw,
			Aspect:  gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{
			Width:              tex.Width,
			Height:             tex.Height,
			DepthOrArrayLayers: 1,
		},
	}})
	tex.Transition(enc, gputypes.TextureUsageTextureBinding)
}

// UploadRows copies height rows of rowBytes each from pix (stride bytes
// apart) into the frame, padding every row to CopyPitchAlignment. It
// returns the allocation and the padded pitch.
func UploadRows(frame *memory.FrameAllocator, pix []byte, stride, rowBytes, height uint32) (memory.Allocation, uint32, error) {
	if height > 0 && uint64(stride)*uint64(height-1)+uint64(rowBytes) > uint64(len(pix)) {
		return memory.Allocation{}, 0, fmt.Errorf("%w: %d bytes for %d rows of %d", ErrTextureSizeMismatch, len(pix), height, rowBytes)
	}
	pitch := (rowBytes + CopyPitchAlignment - 1) &^ (CopyPitchAlignment - 1)
	alloc, err := frame.Allocate(uint64(pitch)*uint64(height), CopyOffsetAlignment)
	if err != nil {
		return memory.Allocation{}, 0, fmt.Errorf("upload pixels: %w", err)
	}
	dst := frame.Bytes(alloc)
	for y := range height {
		copy(dst[y*pitch:y*pitch+rowBytes], pix[y*stride:y*stride+rowBytes])
	}
	return alloc, pitch, nil
}
