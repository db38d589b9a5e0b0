package pool

import (
	"math"
	"testing"
)

func TestFirstHandleIsNonZero(t *testing.T) {
	p := New[string]()
	h := p.Insert("a")
	if h.IsZero() {
		t.Fatal("first handle is zero")
	}
	if h.Index() != 0 || h.Generation() != 1 {
		t.Errorf("first handle = %s, want Handle(0:1)", h)
	}
	if v, ok := p.Get(h); !ok || v != "a" {
		t.Errorf("Get = %q, %v", v, ok)
	}
}

func TestGrowthAppendsOneSlot(t *testing.T) {
	p := New[int]()
	var handles []Handle[int]
	for i := 0; i < 5; i++ {
		before := p.Slots()
		h := p.Insert(i * 10)
		handles = append(handles, h)
		if i == 0 {
			// Slot 0 is preallocated.
			if p.Slots() != 1 {
				t.Fatalf("Slots = %d after first insert, want 1", p.Slots())
			}
			continue
		}
		if p.Slots() != before+1 {
			t.Fatalf("insert %d grew pool from %d to %d slots", i, before, p.Slots())
		}
		if h.Generation() != 0 {
			t.Errorf("appended slot generation = %d, want 0", h.Generation())
		}
	}

	for i, h := range handles {
		if v, ok := p.Get(h); !ok || v != i*10 {
			t.Errorf("Get(%s) = %d, %v; want %d", h, v, ok, i*10)
		}
	}
	if p.Len() != 5 {
		t.Errorf("Len = %d, want 5", p.Len())
	}
}

func TestStaleHandleAfterReuse(t *testing.T) {
	p := New[string]()
	h1 := p.Insert("v1")
	p.Insert("other")

	if v, ok := p.Remove(h1); !ok || v != "v1" {
		t.Fatalf("Remove = %q, %v", v, ok)
	}
	h2 := p.Insert("v2")
	if h2.Index() != h1.Index() {
		t.Fatalf("expected slot reuse: h1=%s h2=%s", h1, h2)
	}
	if h2.Generation() == h1.Generation() {
		t.Fatalf("reused slot kept generation %d", h1.Generation())
	}

	if _, ok := p.Get(h1); ok {
		t.Error("stale handle resolved after slot reuse")
	}
	if p.Ref(h1) != nil {
		t.Error("Ref on stale handle returned a pointer")
	}
	if v, ok := p.Get(h2); !ok || v != "v2" {
		t.Errorf("Get(h2) = %q, %v", v, ok)
	}
	if _, ok := p.Remove(h1); ok {
		t.Error("Remove with stale handle succeeded")
	}
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}
}

func TestFreeListIsLIFO(t *testing.T) {
	p := New[int]()
	a := p.Insert(1)
	b := p.Insert(2)
	c := p.Insert(3)

	p.Remove(a)
	p.Remove(c)

	if h := p.Insert(4); h.Index() != c.Index() {
		t.Errorf("first reuse took slot %d, want %d", h.Index(), c.Index())
	}
	if h := p.Insert(5); h.Index() != a.Index() {
		t.Errorf("second reuse took slot %d, want %d", h.Index(), a.Index())
	}
	if v, _ := p.Get(b); v != 2 {
		t.Errorf("untouched slot changed to %d", v)
	}
}

func TestRemoveOnFreeSlotMisses(t *testing.T) {
	p := New[int]()
	// Handle to the preallocated, still free slot 0.
	h := makeHandle[int](0, 1)
	if _, ok := p.Get(h); ok {
		t.Error("free slot resolved")
	}
	if _, ok := p.Remove(h); ok {
		t.Error("Remove on free slot succeeded")
	}
	if _, ok := p.Get(makeHandle[int](42, 0)); ok {
		t.Error("out-of-range index resolved")
	}
}

func TestRetiredSlotIsNeverReused(t *testing.T) {
	p := New[int]()
	h := p.Insert(1)
	p.slots[h.Index()].generation = math.MaxUint32
	h = p.RecoverHandle(RawHandle[int](h.Index()))

	if _, ok := p.Remove(h); !ok {
		t.Fatal("Remove failed")
	}
	if _, ok := p.Get(h); ok {
		t.Error("retired slot still resolves")
	}

	n := p.Insert(2)
	if n.Index() == h.Index() {
		t.Fatalf("retired slot %d was reused", h.Index())
	}
	if p.freeCount() != 1 {
		t.Errorf("freeCount = %d, want 1 (the retired slot)", p.freeCount())
	}
}

func TestRawAccess(t *testing.T) {
	p := New[[]int]()
	h := p.Insert([]int{1})

	r, ok := p.Validate(h)
	if !ok {
		t.Fatal("Validate failed on live handle")
	}
	*p.GetRaw(r) = append(*p.GetRaw(r), 2)
	if got, _ := p.Get(h); len(got) != 2 {
		t.Errorf("value after GetRaw mutation = %v", got)
	}
	if p.RecoverHandle(r) != h {
		t.Errorf("RecoverHandle = %s, want %s", p.RecoverHandle(r), h)
	}

	v := p.RemoveRaw(r)
	if len(v) != 2 {
		t.Errorf("RemoveRaw = %v", v)
	}
	if _, ok := p.Validate(h); ok {
		t.Error("Validate succeeded after removal")
	}

	defer func() {
		if recover() == nil {
			t.Error("GetRaw on a free slot should panic")
		}
	}()
	p.GetRaw(r)
}

func TestAllAndClear(t *testing.T) {
	p := New[string]()
	want := map[Handle[string]]string{}
	for _, s := range []string{"a", "b", "c", "d"} {
		want[p.Insert(s)] = s
	}
	var removed Handle[string]
	for h := range want {
		removed = h
		break
	}
	p.Remove(removed)
	delete(want, removed)

	got := map[Handle[string]]string{}
	prev := -1
	for h, v := range p.All() {
		if int(h.Index()) <= prev {
			t.Errorf("All not in index order: %d after %d", h.Index(), prev)
		}
		prev = int(h.Index())
		got[h] = *v
	}
	if len(got) != len(want) {
		t.Fatalf("All yielded %d values, want %d", len(got), len(want))
	}
	for h, v := range want {
		if got[h] != v {
			t.Errorf("All[%s] = %q, want %q", h, got[h], v)
		}
	}

	p.Clear()
	if p.Len() != 0 {
		t.Errorf("Len after Clear = %d", p.Len())
	}
	for h := range want {
		if _, ok := p.Get(h); ok {
			t.Errorf("handle %s resolves after Clear", h)
		}
	}
	for range p.All() {
		t.Fatal("All yielded a value after Clear")
	}
}

func TestHandleString(t *testing.T) {
	h := makeHandle[int](7, 3)
	if got := h.String(); got != "Handle(7:3)" {
		t.Errorf("String = %q", got)
	}
	if uint64(h) != 3<<32|7 {
		t.Errorf("packed = %#x", uint64(h))
	}
}
