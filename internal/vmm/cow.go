package vmm

import "github.com/sloplabs/slopos/internal/pmm"

// CowError enumerates why a COW write-fault handler didn't resolve; mapped
// onto the errno taxonomy by internal/syscalls.
type CowError int

const (
	CowOK CowError = iota
	CowNotCOW
	CowOOM
)

// IsCOWFault reports whether a write fault at addr is against a COW page:
// present, COW bit set, WRITABLE clear.
func IsCOWFault(as *AddressSpace, addr uintptr) bool {
	pte, present := as.Translate(addr)
	return present && pte&PTECOW != 0 && pte&PTEWritable == 0
}

// HandleCOWFault resolves a write fault against a COW page: if the frame's
// refcount is 1 (no other address space shares it), it's upgraded in place;
// otherwise a fresh frame is allocated, the 4 KiB copied, and the new frame
// installed writable/non-COW while the old one's refcount drops by one.
func HandleCOWFault(alloc *pmm.Allocator, as *AddressSpace, addr uintptr) CowError {
	pageVA := addr &^ (pmm.PageSize - 1)
	pte, present := as.Translate(pageVA)
	if !present || pte&PTECOW == 0 {
		return CowNotCOW
	}
	oldFrame := pmm.FrameOf(pmm.PhysAddr(pte & physAddrMask))
	flags := pte &^ (physAddrMask | PTECOW)

	if alloc.RefCount(oldFrame) == 1 {
		as.SetEntry(pageVA, uint64(oldFrame.Addr())|flags|PTEWritable|PTEPresent)
		ShootdownLocal(pageVA)
		return CowOK
	}

	newFrame, err := alloc.Alloc(0, 0)
	if err != nil {
		return CowOOM
	}
	copyPage(oldFrame, newFrame)
	as.SetEntry(pageVA, uint64(newFrame.Addr())|flags|PTEWritable|PTEPresent)
	ShootdownLocal(pageVA)
	alloc.DecRef(oldFrame)
	return CowOK
}

func copyPage(src, dst pmm.Frame) {
	s := (*[pmm.PageSize]byte)(pmm.ToVirt(src.Addr()))
	d := (*[pmm.PageSize]byte)(pmm.ToVirt(dst.Addr()))
	*d = *s
}

// CloneCOW duplicates parent's VMA tree into child and, for every present
// writable page, clears WRITABLE and sets COW in both parent and child PTEs
// and bumps the frame's refcount — the shared machinery behind fork and
// clone(CLONE_VM unset).
func CloneCOW(alloc *pmm.Allocator, parent, child *AddressSpace, parentTree *Tree) *Tree {
	childTree := NewTree()
	for _, v := range parentTree.All() {
		childVMA := &VMA{Start: v.Start, End: v.End, Flags: v.Flags}
		childTree.Insert(childVMA)

		for va := v.Start; va < v.End; va += pmm.PageSize {
			pte, present := parent.Translate(va)
			if !present {
				continue
			}
			if pte&PTEWritable != 0 {
				pte = pte&^PTEWritable | PTECOW
				parent.SetEntry(va, pte)
			}
			f := pmm.FrameOf(pmm.PhysAddr(pte & physAddrMask))
			alloc.IncRef(f)
			child.SetEntryCreate(alloc, va, pte)
		}
	}
	return childTree
}
