package memory

import (
	"fmt"
	"math/bits"
)

// HeapOffset is a byte offset into a block-allocated heap.
type HeapOffset uint64

const noBlock = ^uint32(0)

type block struct {
	next uint32
	live bool
}

// BlockAllocator manages a fixed number of equal-size blocks with an
// intrusive free list. The most recently freed block is reused first.
type BlockAllocator struct {
	blocks    []block
	blockSize HeapOffset
	firstFree uint32
	available uint32
}

// NewBlockAllocator creates an allocator of maxBlocks blocks of blockSize
// bytes each. Block i lives at heap offset i*blockSize. It panics when
// blockSize is zero or the heap size does not fit a HeapOffset.
func NewBlockAllocator(blockSize HeapOffset, maxBlocks uint32) *BlockAllocator {
	if blockSize == 0 {
		panic("memory: block size must be positive")
	}
	if hi, _ := bits.Mul64(uint64(blockSize), uint64(maxBlocks)); hi != 0 {
		panic(fmt.Sprintf("memory: %d blocks of %d bytes overflow the heap offset range", maxBlocks, blockSize))
	}
	b := &BlockAllocator{
		blocks:    make([]block, maxBlocks),
		blockSize: blockSize,
		firstFree: noBlock,
		available: maxBlocks,
	}
	for i := range b.blocks {
		next := uint32(i) + 1 //nolint:gosec // G115: i < maxBlocks
		if next == maxBlocks {
			next = noBlock
		}
		b.blocks[i].next = next
	}
	if maxBlocks > 0 {
		b.firstFree = 0
	}
	return b
}

// Allocate returns the heap offset of a free block.
func (b *BlockAllocator) Allocate() (HeapOffset, error) {
	if b.firstFree == noBlock {
		return 0, &OutOfMemoryError{
			Capacity:  uint64(len(b.blocks)),
			Available: 0,
			Requested: 1,
		}
	}
	idx := b.firstFree
	blk := &b.blocks[idx]
	b.firstFree = blk.next
	blk.next = noBlock
	blk.live = true
	b.available--
	return HeapOffset(idx) * b.blockSize, nil
}

// Free returns the block at offset to the allocator. Freeing an offset that
// is misaligned, out of range, or not allocated panics.
func (b *BlockAllocator) Free(offset HeapOffset) {
	if offset%b.blockSize != 0 {
		panic(fmt.Sprintf("memory: offset %d is not a multiple of block size %d", offset, b.blockSize))
	}
	idx := offset / b.blockSize
	if idx >= HeapOffset(len(b.blocks)) {
		panic(fmt.Sprintf("memory: offset %d is outside the allocator", offset))
	}
	blk := &b.blocks[idx]
	if !blk.live {
		panic(fmt.Sprintf("memory: double free of block at offset %d", offset))
	}
	blk.live = false
	blk.next = b.firstFree
	b.firstFree = uint32(idx) //nolint:gosec // G115: idx < len(blocks)
	b.available++
}

// BlockSize returns the size of one block.
func (b *BlockAllocator) BlockSize() HeapOffset { return b.blockSize }

// Capacity returns the total number of blocks.
func (b *BlockAllocator) Capacity() uint32 { return uint32(len(b.blocks)) } //nolint:gosec // G115: built from uint32

// Available returns the number of free blocks.
func (b *BlockAllocator) Available() uint32 { return b.available }
