package vmm

import (
	"testing"
	"unsafe"
)

func TestKmallocSlabClassRoundTrips(t *testing.T) {
	h := NewKHeap(newTestArena(t, 8))
	p := h.Kmalloc(24) // rounds up to the 32-byte class
	if p == 0 {
		t.Fatal("Kmalloc returned 0")
	}
	buf := (*[32]byte)(unsafe.Pointer(p))
	for i := range buf {
		buf[i] = 0xAB
	}
	h.Kfree(p, 24)
}

func TestKmallocReusesFreedSlabObject(t *testing.T) {
	h := NewKHeap(newTestArena(t, 8))
	p1 := h.Kmalloc(16)
	h.Kfree(p1, 16)
	p2 := h.Kmalloc(16)
	if p1 != p2 {
		t.Fatalf("expected freed slab slot to be reused: p1=%#x p2=%#x", p1, p2)
	}
}

func TestKmallocGrowsSlabAcrossPages(t *testing.T) {
	h := NewKHeap(newTestArena(t, 16))
	seen := make(map[uintptr]bool)
	for i := 0; i < 600; i++ { // forces multiple page grows for the 16-byte class
		p := h.Kmalloc(16)
		if p == 0 {
			t.Fatalf("Kmalloc failed on iteration %d", i)
		}
		if seen[p] {
			t.Fatalf("Kmalloc returned duplicate live pointer %#x", p)
		}
		seen[p] = true
	}
}

func TestKmallocLargeBlockPath(t *testing.T) {
	h := NewKHeap(newTestArena(t, 64))
	p := h.Kmalloc(10000) // above the largest slab class (2048)
	if p == 0 {
		t.Fatal("large Kmalloc returned 0")
	}
	buf := (*[10000]byte)(unsafe.Pointer(p))
	buf[0] = 1
	buf[9999] = 2
	h.Kfree(p, 10000)
}

func TestKmallocZeroSizeReturnsZero(t *testing.T) {
	h := NewKHeap(newTestArena(t, 4))
	if p := h.Kmalloc(0); p != 0 {
		t.Fatalf("Kmalloc(0) = %#x, want 0", p)
	}
}

func TestKfreeNilIsNoop(t *testing.T) {
	h := NewKHeap(newTestArena(t, 4))
	h.Kfree(0, 16) // must not panic
}

// TestKfreeDoubleFreeDoesNotCorruptSlabFreeList guards against the free
// list becoming a cycle: without the walk in Kfree, a second Kfree(p, ...)
// would push p onto the list a second time, and two consecutive Kmallocs
// would then hand back the same live pointer twice.
func TestKfreeDoubleFreeDoesNotCorruptSlabFreeList(t *testing.T) {
	h := NewKHeap(newTestArena(t, 4))
	p := h.Kmalloc(16)
	h.Kfree(p, 16)
	h.Kfree(p, 16) // double free: caught and ignored, not re-linked

	first := h.Kmalloc(16)
	second := h.Kmalloc(16)
	if first == second {
		t.Fatalf("double free corrupted the slab free list: Kmalloc returned %#x twice", first)
	}
}

func TestKfreeDoubleFreeLargeBlockDoesNotCorruptList(t *testing.T) {
	h := NewKHeap(newTestArena(t, 64))
	p := h.Kmalloc(10000)
	h.Kfree(p, 10000)
	h.Kfree(p, 10000) // double free: magic is already cleared, so this is a no-op

	q := h.Kmalloc(10000)
	if q == 0 {
		t.Fatal("Kmalloc after a double free returned 0")
	}
}
