package memory

import (
	"fmt"
	"unsafe"
)

// Allocation is a span of the ring returned by [FrameAllocator.Allocate].
type Allocation struct {
	// Size is the requested size in bytes.
	Size uint64

	// VirtualOffset is the position of the span in the allocator's
	// monotonic byte counter. It only grows over the allocator's lifetime.
	VirtualOffset uint64

	// HeapOffset is the byte offset of the span inside the heap.
	// A span never crosses the end of the heap.
	HeapOffset uint64
}

// FrameMarker records the span of the monotonic byte counter consumed by a
// finished frame. Markers must be released with [Allocator.FreeFrame] in the
// order they were produced.
type FrameMarker struct {
	start uint64
	end   uint64
}

// Start returns the first counter value owned by the frame.
func (m FrameMarker) Start() uint64 { return m.start }

// End returns one past the last counter value owned by the frame.
func (m FrameMarker) End() uint64 { return m.end }

// Len returns the number of bytes (including alignment padding) owned by
// the frame.
func (m FrameMarker) Len() uint64 { return m.end - m.start }

func (m FrameMarker) String() string {
	return fmt.Sprintf("FrameMarker[%d, %d)", m.start, m.end)
}

// Allocator is a ring allocator over a fixed-capacity heap.
//
// Allocations are grouped into frames. A frame is opened with BeginFrame,
// filled with Allocate or Upload, and closed with Finish, which yields a
// FrameMarker. The memory of a frame is reclaimed with FreeFrame once the
// GPU no longer reads it.
//
// Two monotonic counters track the ring: bytesAllocated (the head) and
// bytesFreed (the tail). Both are reduced modulo capacity to get ring
// positions, and bytesFreed never exceeds bytesAllocated.
type Allocator struct {
	capacity       uint64
	bytesAllocated uint64
	bytesFreed     uint64
	heap           []byte
	frameOpen      bool
}

// NewAllocator creates a ring allocator of the given capacity.
//
// heap is the CPU-visible backing memory, typically a persistently mapped
// upload buffer. It may be nil, in which case the allocator only does the
// accounting and uploads fail with ErrNoHeap.
func NewAllocator(capacity uint64, heap []byte) *Allocator {
	if capacity == 0 {
		panic("memory: ring allocator capacity must be positive")
	}
	if heap != nil && uint64(len(heap)) < capacity {
		panic(fmt.Sprintf("memory: heap of %d bytes is smaller than capacity %d", len(heap), capacity))
	}
	return &Allocator{capacity: capacity, heap: heap}
}

// Capacity returns the size of the ring in bytes.
func (a *Allocator) Capacity() uint64 { return a.capacity }

// Used returns the number of committed bytes not yet freed, including
// alignment and wrap padding.
func (a *Allocator) Used() uint64 { return a.bytesAllocated - a.bytesFreed }

// IsFree reports whether every committed frame has been freed.
func (a *Allocator) IsFree() bool { return a.bytesAllocated == a.bytesFreed }

// IsFull reports whether committed frames occupy the whole ring.
func (a *Allocator) IsFull() bool { return a.bytesAllocated-a.bytesFreed == a.capacity }

// Heap returns the backing memory, or nil.
func (a *Allocator) Heap() []byte { return a.heap }

// BeginFrame opens a new frame. Only one frame may be open at a time.
func (a *Allocator) BeginFrame() *FrameAllocator {
	if a.frameOpen {
		panic("memory: BeginFrame called while another frame is open")
	}
	a.frameOpen = true
	return &FrameAllocator{
		a:         a,
		start:     a.bytesAllocated,
		allocated: a.bytesAllocated,
	}
}

// FreeFrame releases the memory of a finished frame.
//
// Frames must be freed in the order they were finished: the marker's start
// must equal the current tail. Freeing out of order is a programming error
// and panics. A marker that owns no bytes is accepted as long as it does not
// lie ahead of the tail.
func (a *Allocator) FreeFrame(marker FrameMarker) {
	if marker.start == marker.end && marker.start <= a.bytesFreed {
		return
	}
	if marker.start != a.bytesFreed {
		panic(fmt.Sprintf("memory: %s freed out of order (tail at %d)", marker, a.bytesFreed))
	}
	if marker.end > a.bytesAllocated {
		panic(fmt.Sprintf("memory: %s extends past the head at %d", marker, a.bytesAllocated))
	}
	a.bytesFreed = marker.end
}

// FrameAllocator serves the allocations of one frame. Allocations are not
// visible to the parent Allocator until Finish is called.
type FrameAllocator struct {
	a         *Allocator
	start     uint64
	allocated uint64
	done      bool
}

// Allocate reserves size bytes aligned to alignment.
//
// It returns ErrInsufficientCapacity when size exceeds the capacity of the
// ring, and an *OutOfMemoryError when live frames leave no suitable gap.
// A failed call leaves the allocator unchanged.
func (f *FrameAllocator) Allocate(size, alignment uint64) (Allocation, error) {
	f.checkOpen()
	a := f.a

	if size > a.capacity {
		return Allocation{}, ErrInsufficientCapacity
	}

	tail := a.bytesFreed % a.capacity
	base := f.allocated % a.capacity
	aligned := alignUp(base, alignment)
	used := f.allocated - a.bytesFreed
	fitsAfterHead := aligned <= a.capacity && a.capacity-aligned >= size

	var (
		adjust     uint64
		heapOffset uint64
		ok         bool
	)

	switch {
	case tail < base:
		// [ free | live | free ]
		//        ^tail  ^base
		switch {
		case fitsAfterHead:
			adjust, heapOffset, ok = aligned-base, aligned, true
		case tail >= size:
			adjust, heapOffset, ok = a.capacity-base, 0, true
		}
	case tail > base:
		// [ live | free | live ]
		//        ^base  ^tail
		if aligned <= tail && tail-aligned >= size {
			adjust, heapOffset, ok = aligned-base, aligned, true
		}
	case used == 0:
		// Empty ring. When the request does not fit before the end, the
		// whole ring is free, so the frame start and the tail move to the
		// wrap point together and the skipped bytes are never accounted.
		if fitsAfterHead {
			adjust, heapOffset, ok = aligned-base, aligned, true
			break
		}
		skip := a.capacity - base
		f.start += skip
		f.allocated += skip
		a.bytesAllocated = f.start
		a.bytesFreed = f.start
		adjust, heapOffset, ok = 0, 0, true
	}

	if !ok {
		return Allocation{}, &OutOfMemoryError{
			Capacity:  a.capacity,
			Available: a.capacity - used,
			Requested: size,
		}
	}

	alloc := Allocation{
		Size:          size,
		VirtualOffset: f.allocated + adjust,
		HeapOffset:    heapOffset,
	}
	f.allocated += adjust + size
	return alloc, nil
}

// Upload allocates len(data) bytes aligned to alignment and copies data
// into the heap.
func (f *FrameAllocator) Upload(data []byte, alignment uint64) (Allocation, error) {
	f.checkOpen()
	if f.a.heap == nil {
		return Allocation{}, ErrNoHeap
	}
	alloc, err := f.Allocate(uint64(len(data)), alignment)
	if err != nil {
		return Allocation{}, err
	}
	copy(f.a.heap[alloc.HeapOffset:alloc.HeapOffset+alloc.Size], data)
	return alloc, nil
}

// Allocated returns the number of bytes consumed by this frame so far,
// including padding.
func (f *FrameAllocator) Allocated() uint64 { return f.allocated - f.start }

// Bytes returns the heap bytes backing alloc. It returns nil when the
// allocator has no heap.
func (f *FrameAllocator) Bytes(alloc Allocation) []byte {
	if f.a.heap == nil {
		return nil
	}
	return f.a.heap[alloc.HeapOffset : alloc.HeapOffset+alloc.Size]
}

// Finish commits the frame's allocations and returns its marker.
func (f *FrameAllocator) Finish() FrameMarker {
	f.checkOpen()
	f.done = true
	f.a.bytesAllocated = f.allocated
	f.a.frameOpen = false
	return FrameMarker{start: f.start, end: f.allocated}
}

// Discard closes the frame without committing any of its allocations.
func (f *FrameAllocator) Discard() {
	f.checkOpen()
	f.done = true
	f.a.frameOpen = false
}

func (f *FrameAllocator) checkOpen() {
	if f.done {
		panic("memory: use of a finished frame allocator")
	}
}

// UploadSlice copies values into the frame, aligned to the alignment of T.
func UploadSlice[T any](f *FrameAllocator, values []T) (Allocation, error) {
	var zero T
	return UploadSliceAligned(f, values, uint64(unsafe.Alignof(zero)))
}

// UploadSliceAligned copies values into the frame, aligned to the larger of
// alignment and the alignment of T. T must not contain pointers.
func UploadSliceAligned[T any](f *FrameAllocator, values []T, alignment uint64) (Allocation, error) {
	var zero T
	if a := uint64(unsafe.Alignof(zero)); a > alignment {
		alignment = a
	}
	size := uint64(len(values)) * uint64(unsafe.Sizeof(zero))
	if size == 0 {
		return f.Upload(nil, alignment)
	}
	//nolint:gosec // G103: values is a contiguous slice of plain data
	src := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(values))), size)
	return f.Upload(src, alignment)
}
