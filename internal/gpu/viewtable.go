package gpu

import (
	"fmt"

	"github.com/gogpu/glimmer/internal/memory"
	"github.com/gogpu/wgpu/hal"
)

// viewDescriptorSize is the stride of one slot in the view table.
const viewDescriptorSize memory.HeapOffset = 32

// ViewSlot is an index into a ViewTable.
type ViewSlot uint32

type viewEntry struct {
	view      hal.TextureView
	bindGroup hal.BindGroup
}

// ViewTable is a fixed-capacity table of texture views. Slots come from a
// block allocator, so capacity is decided once and freed slots are reused
// most-recent first.
//
// Each slot may also own a bind group that samples the view; it is
// destroyed together with the view.
type ViewTable struct {
	device  hal.Device
	label   string
	blocks  *memory.BlockAllocator
	entries []viewEntry
}

// NewViewTable creates a table of capacity slots.
func NewViewTable(device hal.Device, label string, capacity uint32) *ViewTable {
	return &ViewTable{
		device:  device,
		label:   label,
		blocks:  memory.NewBlockAllocator(viewDescriptorSize, capacity),
		entries: make([]viewEntry, capacity),
	}
}

// Insert stores view and its optional bind group. The table takes
// ownership of both.
func (t *ViewTable) Insert(view hal.TextureView, bindGroup hal.BindGroup) (ViewSlot, error) {
	off, err := t.blocks.Allocate()
	if err != nil {
		return 0, fmt.Errorf("%s view table: %w", t.label, err)
	}
	slot := ViewSlot(off / viewDescriptorSize) //nolint:gosec // G115: bounded by capacity
	t.entries[slot] = viewEntry{view: view, bindGroup: bindGroup}
	return slot, nil
}

// View returns the view in slot.
func (t *ViewTable) View(slot ViewSlot) hal.TextureView { return t.entries[slot].view }

// BindGroup returns the bind group in slot, or nil.
func (t *ViewTable) BindGroup(slot ViewSlot) hal.BindGroup { return t.entries[slot].bindGroup }

// EnsureBindGroup returns the bind group in slot, creating it from the
// slot's view with create on first use. The table owns the result.
func (t *ViewTable) EnsureBindGroup(slot ViewSlot, create func(hal.TextureView) (hal.BindGroup, error)) (hal.BindGroup, error) {
	e := &t.entries[slot]
	if e.bindGroup != nil {
		return e.bindGroup, nil
	}
	if e.view == nil {
		return nil, fmt.Errorf("%s view table: slot %d is free", t.label, slot)
	}
	bg, err := create(e.view)
	if err != nil {
		return nil, err
	}
	e.bindGroup = bg
	return bg, nil
}

// Remove destroys the view and bind group in slot and frees the slot.
// Removing a free slot panics.
func (t *ViewTable) Remove(slot ViewSlot) {
	t.blocks.Free(memory.HeapOffset(slot) * viewDescriptorSize)
	e := t.entries[slot]
	t.entries[slot] = viewEntry{}
	if e.bindGroup != nil {
		t.device.DestroyBindGroup(e.bindGroup)
	}
	if e.view != nil {
		t.device.DestroyTextureView(e.view)
	}
}

// Capacity returns the number of slots.
func (t *ViewTable) Capacity() uint32 { return t.blocks.Capacity() }

// Available returns the number of free slots.
func (t *ViewTable) Available() uint32 { return t.blocks.Available() }

// Destroy releases every live slot.
func (t *ViewTable) Destroy() {
	for i := range t.entries {
		e := t.entries[i]
		if e.view == nil && e.bindGroup == nil {
			continue
		}
		t.Remove(ViewSlot(i)) //nolint:gosec // G115: bounded by capacity
	}
}
