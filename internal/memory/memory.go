// Package memory implements the CPU-side bookkeeping for GPU-visible heaps.
//
// Two allocators are provided:
//
//   - [Allocator] hands out transient, frame-scoped spans of a fixed-size
//     ring buffer (the mapped upload heap). Frames are released strictly in
//     the order they were created, once the GPU has consumed them.
//   - [BlockAllocator] hands out equal-size slots from a fixed-capacity
//     table, used for texture and render-target view slots.
//
// Neither allocator is safe for concurrent use. Both are owned by a single
// rendering context and mutated only while a frame is being recorded.
package memory

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// Allocation errors.
var (
	// ErrOutOfMemory is returned when live allocations leave no room for the
	// request. Retrying after older frames are released may succeed.
	ErrOutOfMemory = errors.New("glimmer: out of memory")

	// ErrInsufficientCapacity is returned when the request is larger than
	// the allocator itself. Retrying will never succeed.
	ErrInsufficientCapacity = errors.New("glimmer: request exceeds allocator capacity")

	// ErrNoHeap is returned by uploads into an allocator created without a
	// backing heap.
	ErrNoHeap = errors.New("glimmer: allocator has no backing heap")
)

// OutOfMemoryError describes a failed allocation.
// It matches [ErrOutOfMemory] with errors.Is.
type OutOfMemoryError struct {
	Capacity  uint64
	Available uint64
	Requested uint64
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("glimmer: out of memory (capacity %d, available %d, requested %d)",
		e.Capacity, e.Available, e.Requested)
}

// Is reports whether target is ErrOutOfMemory.
func (e *OutOfMemoryError) Is(target error) bool {
	return target == ErrOutOfMemory
}

// alignUp rounds v up to the next multiple of align. An alignment of 0 or 1
// leaves v unchanged.
func alignUp[T constraints.Unsigned](v, align T) T {
	if align <= 1 {
		return v
	}
	if r := v % align; r != 0 {
		return v + align - r
	}
	return v
}
