package gpu

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/glimmer/internal/memory"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultUploadHeapSize is the size of the per-context upload heap (20 MiB).
const DefaultUploadHeapSize = 20 << 20

// Alignment requirements for spans of the upload heap.
const (
	// UniformAlignment is the minimum uniform buffer offset alignment
	// guaranteed by every backend.
	UniformAlignment = 256

	// VertexAlignment is the alignment of vertex and index buffer offsets.
	VertexAlignment = 4

	// CopyPitchAlignment is the row pitch alignment of buffer-to-texture
	// copies.
	CopyPitchAlignment = 256

	// CopyOffsetAlignment is the offset alignment of buffer-to-texture
	// copies.
	CopyOffsetAlignment = 512
)

// UploadHeap is a persistently mapped, CPU-writable buffer that the GPU
// reads vertex, index, uniform and texture data from. Space is handed out
// frame by frame through a ring allocator.
type UploadHeap struct {
	device hal.Device
	buffer hal.Buffer
	ring   *memory.Allocator
	size   uint64
}

// NewUploadHeap creates and maps an upload buffer of size bytes.
func NewUploadHeap(device hal.Device, size uint64) (*UploadHeap, error) {
	if size == 0 {
		size = DefaultUploadHeapSize
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "glimmer_upload_heap",
		Size:  size,
		Usage: gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc |
			gputypes.BufferUsageVertex | gputypes.BufferUsageIndex | gputypes.BufferUsageUniform,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create upload heap: %w", err)
	}

	mapping, err := device.MapBuffer(buf, 0, size)
	if err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("map upload heap: %w", err)
	}
	if mapping.Ptr == nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("map upload heap: %w", hal.ErrInvalidMapRange)
	}
	//nolint:gosec // G103: the mapping stays valid until UnmapBuffer in Destroy
	heap := unsafe.Slice((*byte)(mapping.Ptr), size)

	slogger().Debug("gpu: upload heap mapped", "bytes", size, "coherent", mapping.IsCoherent)
	return &UploadHeap{
		device: device,
		buffer: buf,
		ring:   memory.NewAllocator(size, heap),
		size:   size,
	}, nil
}

// Buffer returns the GPU buffer backing the heap.
func (h *UploadHeap) Buffer() hal.Buffer { return h.buffer }

// Ring returns the allocator that manages the heap.
func (h *UploadHeap) Ring() *memory.Allocator { return h.ring }

// Size returns the heap size in bytes.
func (h *UploadHeap) Size() uint64 { return h.size }

// Destroy unmaps and releases the buffer. The GPU must be idle.
func (h *UploadHeap) Destroy() {
	if h.buffer == nil {
		return
	}
	if err := h.device.UnmapBuffer(h.buffer); err != nil {
		slogger().Warn("gpu: unmap upload heap", "err", err)
	}
	h.device.DestroyBuffer(h.buffer)
	h.buffer = nil
}
