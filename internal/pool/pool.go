// Package pool provides a generational object pool.
//
// Values are stored in slots addressed by [Handle] values that pair a slot
// index with a generation counter. Removing a value bumps the generation of
// its slot, so handles to removed values stop resolving even after the slot
// is reused.
package pool

import (
	"fmt"
	"iter"
	"math"
	"math/bits"
)

const noSlot = math.MaxUint32

type slot[T any] struct {
	value      T
	next       uint32 // free-list link, valid while the slot is free
	generation uint32
}

// Pool is a slot array with generational handles and an intrusive free
// list. The most recently freed slot is reused first.
//
// A Pool is not safe for concurrent use.
type Pool[T any] struct {
	slots    []slot[T]
	free     []uint64 // bit i set: slot i is free
	freeHead uint32
	len      int
}

// New creates an empty pool. Slot 0 starts free with generation 1 so that
// no handle issued by the pool is zero.
func New[T any]() *Pool[T] {
	p := &Pool[T]{
		slots:    []slot[T]{{next: noSlot, generation: 1}},
		freeHead: 0,
	}
	p.setFree(0, true)
	return p
}

// Clear removes every value. Outstanding handles stop resolving.
func (p *Pool[T]) Clear() {
	for i := range p.slots {
		idx := uint32(i) //nolint:gosec // G115: len(slots) < MaxUint32
		if !p.isFree(idx) {
			p.RemoveRaw(RawHandle[T](idx))
		}
	}
}

// Insert stores v and returns its handle.
func (p *Pool[T]) Insert(v T) Handle[T] {
	if p.freeHead != noSlot {
		idx := p.freeHead
		s := &p.slots[idx]
		p.freeHead = s.next
		s.next = noSlot
		s.value = v
		p.setFree(idx, false)
		p.len++
		return makeHandle[T](idx, s.generation)
	}

	if uint64(len(p.slots)) >= noSlot {
		panic("pool: slot index space exhausted")
	}
	idx := uint32(len(p.slots)) //nolint:gosec // G115: checked above
	p.slots = append(p.slots, slot[T]{value: v, next: noSlot})
	p.setFree(idx, false)
	p.len++
	return makeHandle[T](idx, 0)
}

// Get returns the value for h. The boolean is false when the slot is free
// or has been reused since h was issued.
func (p *Pool[T]) Get(h Handle[T]) (T, bool) {
	if ptr := p.Ref(h); ptr != nil {
		return *ptr, true
	}
	var zero T
	return zero, false
}

// Ref returns a pointer to the value for h, or nil if h does not resolve.
// The pointer is invalidated by the next Insert.
func (p *Pool[T]) Ref(h Handle[T]) *T {
	r, ok := p.Validate(h)
	if !ok {
		return nil
	}
	return &p.slots[r].value
}

// Validate checks h once and returns a raw handle for fast access while
// the slot is known to stay occupied.
func (p *Pool[T]) Validate(h Handle[T]) (RawHandle[T], bool) {
	idx := h.Index()
	if int(idx) >= len(p.slots) || p.isFree(idx) || p.slots[idx].generation != h.Generation() {
		return 0, false
	}
	return RawHandle[T](idx), true
}

// Remove deletes the value for h and returns it. The boolean is false if h
// does not resolve, in which case the pool is unchanged.
func (p *Pool[T]) Remove(h Handle[T]) (T, bool) {
	r, ok := p.Validate(h)
	if !ok {
		var zero T
		return zero, false
	}
	return p.RemoveRaw(r), true
}

// GetRaw returns a pointer to the value in slot r. The slot must be
// occupied; a free slot panics.
func (p *Pool[T]) GetRaw(r RawHandle[T]) *T {
	p.mustOccupied(r)
	return &p.slots[r].value
}

// RemoveRaw deletes and returns the value in slot r. The slot must be
// occupied; a free slot panics.
//
// The slot generation is incremented. A slot whose generation reaches the
// maximum is retired and never handed out again.
func (p *Pool[T]) RemoveRaw(r RawHandle[T]) T {
	p.mustOccupied(r)
	idx := uint32(r)
	s := &p.slots[idx]
	v := s.value
	var zero T
	s.value = zero
	p.setFree(idx, true)
	p.len--

	if s.generation == math.MaxUint32 {
		// Retired: marked free so lookups miss, but kept off the free list.
		return v
	}
	s.generation++
	s.next = p.freeHead
	p.freeHead = idx
	return v
}

// RecoverHandle rebuilds the generational handle for an occupied slot.
func (p *Pool[T]) RecoverHandle(r RawHandle[T]) Handle[T] {
	p.mustOccupied(r)
	return makeHandle[T](uint32(r), p.slots[r].generation)
}

// Len returns the number of stored values.
func (p *Pool[T]) Len() int { return p.len }

// Slots returns the number of slots, free or occupied.
func (p *Pool[T]) Slots() int { return len(p.slots) }

// All iterates over occupied slots in index order.
func (p *Pool[T]) All() iter.Seq2[Handle[T], *T] {
	return func(yield func(Handle[T], *T) bool) {
		for i := range p.slots {
			idx := uint32(i) //nolint:gosec // G115: len(slots) < MaxUint32
			if p.isFree(idx) {
				continue
			}
			if !yield(makeHandle[T](idx, p.slots[i].generation), &p.slots[i].value) {
				return
			}
		}
	}
}

func (p *Pool[T]) mustOccupied(r RawHandle[T]) {
	idx := uint32(r)
	if int(idx) >= len(p.slots) || p.isFree(idx) {
		panic(fmt.Sprintf("pool: raw handle %d refers to a free slot", idx))
	}
}

func (p *Pool[T]) isFree(idx uint32) bool {
	w := int(idx / 64)
	if w >= len(p.free) {
		return false
	}
	return p.free[w]&(1<<(idx%64)) != 0
}

func (p *Pool[T]) setFree(idx uint32, free bool) {
	w := int(idx / 64)
	for w >= len(p.free) {
		p.free = append(p.free, 0)
	}
	if free {
		p.free[w] |= 1 << (idx % 64)
	} else {
		p.free[w] &^= 1 << (idx % 64)
	}
}

// freeCount returns the number of free slots, including retired ones.
func (p *Pool[T]) freeCount() int {
	n := 0
	for _, w := range p.free {
		n += bits.OnesCount64(w)
	}
	return n
}
