package vmm

import (
	"testing"
	"unsafe"

	"github.com/sloplabs/slopos/internal/pmm"
)

func ptrFromPTE(pte uint64) unsafe.Pointer {
	return pmm.ToVirt(pmm.PhysAddr(pte & physAddrMask))
}

func TestIsDemandFaultTrueForLazyAnonVMA(t *testing.T) {
	alloc := newTestArena(t, 32)
	as, err := NewAddressSpace(alloc)
	if err != nil {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	tree := NewTree()
	tree.Insert(&VMA{Start: 0x400000, End: 0x402000, Flags: VMARead | VMAWrite | VMAUser | VMALazy | VMAAnon})

	v, ok := IsDemandFault(as, tree, 0x400800)
	if !ok || v == nil {
		t.Fatal("expected a demand fault against the lazy VMA")
	}
}

func TestIsDemandFaultFalseWithoutCoveringVMA(t *testing.T) {
	alloc := newTestArena(t, 32)
	as, _ := NewAddressSpace(alloc)
	tree := NewTree()

	if _, ok := IsDemandFault(as, tree, 0x400800); ok {
		t.Fatal("expected no demand fault with an empty VMA tree")
	}
}

func TestIsDemandFaultFalseWhenAlreadyMapped(t *testing.T) {
	alloc := newTestArena(t, 32)
	as, _ := NewAddressSpace(alloc)
	tree := NewTree()
	va := uintptr(0x400000)
	tree.Insert(&VMA{Start: va, End: va + 0x1000, Flags: VMARead | VMALazy | VMAAnon})

	f, err := alloc.Alloc(0, 0)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if !as.Map(alloc, va, f, PTEWritable) {
		t.Fatal("Map failed")
	}
	if _, ok := IsDemandFault(as, tree, va+8); ok {
		t.Fatal("expected no demand fault once the page is already mapped")
	}
}

func TestHandleDemandFaultMapsZeroedAnonPage(t *testing.T) {
	alloc := newTestArena(t, 32)
	as, _ := NewAddressSpace(alloc)
	va := uintptr(0x500000)
	v := &VMA{Start: va, End: va + 0x1000, Flags: VMARead | VMAWrite | VMAUser | VMALazy | VMAAnon}

	if code := HandleDemandFault(alloc, as, v, va+16, FaultKind{}); code != DemandOK {
		t.Fatalf("HandleDemandFault = %v, want DemandOK", code)
	}
	pte, present := as.Translate(va)
	if !present {
		t.Fatal("page not present after HandleDemandFault")
	}
	if pte&PTEWritable == 0 {
		t.Fatal("writable VMA should produce a writable PTE")
	}

	page := (*[4096]byte)(ptrFromPTE(pte))
	for i, b := range page {
		if b != 0 {
			t.Fatalf("page not zeroed at offset %d: %#x", i, b)
		}
	}
}

func TestHandleDemandFaultDeniesWriteToReadOnlyVMA(t *testing.T) {
	alloc := newTestArena(t, 32)
	as, _ := NewAddressSpace(alloc)
	va := uintptr(0x600000)
	v := &VMA{Start: va, End: va + 0x1000, Flags: VMARead | VMALazy | VMAAnon}

	code := HandleDemandFault(alloc, as, v, va, FaultKind{Write: true})
	if code != DemandPermissionDenied {
		t.Fatalf("HandleDemandFault = %v, want DemandPermissionDenied", code)
	}
	if _, present := as.Translate(va); present {
		t.Fatal("a denied fault must not install a mapping")
	}
}
