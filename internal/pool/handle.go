package pool

import "fmt"

// Handle is a generational reference to a value in a [Pool].
//
// The low 32 bits hold the slot index and the high 32 bits the generation
// of the slot when the value was inserted. A Handle returned by Insert is
// never zero.
type Handle[T any] uint64

func makeHandle[T any](index, generation uint32) Handle[T] {
	return Handle[T](uint64(generation)<<32 | uint64(index))
}

// Index returns the slot index.
func (h Handle[T]) Index() uint32 { return uint32(h) } //nolint:gosec // G115: low half

// Generation returns the slot generation the handle was issued for.
func (h Handle[T]) Generation() uint32 { return uint32(h >> 32) } //nolint:gosec // G115: high half

// IsZero reports whether h is the zero handle, which never refers to a value.
func (h Handle[T]) IsZero() bool { return h == 0 }

func (h Handle[T]) String() string {
	return fmt.Sprintf("Handle(%d:%d)", h.Index(), h.Generation())
}

// RawHandle is a slot index obtained from [Pool.Validate]. It skips the
// generation check and is only meaningful while the slot stays occupied.
type RawHandle[T any] uint32

// Index returns the slot index.
func (r RawHandle[T]) Index() uint32 { return uint32(r) }
