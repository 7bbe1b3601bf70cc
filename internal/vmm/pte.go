// Package vmm is virtual memory: the four-level page-table walker, the
// per-process VMA interval tree, demand paging, copy-on-write, TLB
// shootdown, and the kernel heap built on top of pmm's frames. The
// table-walk/identity-mapping style (fixed-size page-table array, walk by
// shifting through level indices, zero a freshly allocated table before
// linking it in) is grounded on mazboot's mmu.go, generalized from ARM64's
// stage-1 descriptor bits to the x86_64 long-mode PTE format.
package vmm

import (
	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/pmm"
)

// PTE bits, long mode 4-level paging (Intel SDM vol 3 4.5).
const (
	PTEPresent  uint64 = 1 << 0
	PTEWritable uint64 = 1 << 1
	PTEUser     uint64 = 1 << 2
	PTEPWT      uint64 = 1 << 3
	PTEPCD      uint64 = 1 << 4
	PTEAccessed uint64 = 1 << 5
	PTEDirty    uint64 = 1 << 6
	PTEHuge     uint64 = 1 << 7 // PS bit at PD/PDPT level
	PTEGlobal   uint64 = 1 << 8
	// PTECOW is a software-defined bit (available bits 9-11) marking a page
	// shared copy-on-write; such a page always has PTEWritable clear.
	PTECOW uint64 = 1 << 9
	PTENX  uint64 = 1 << 63

	physAddrMask uint64 = 0x000F_FFFF_FFFF_F000
	// PhysAddrMask is physAddrMask exported for callers outside vmm (the
	// syscalls mprotect handler) that need to preserve a PTE's frame bits
	// while rewriting its permission bits.
	PhysAddrMask = physAddrMask
)

const entriesPerTable = 512

// Table is one level of the page-table hierarchy: 512 64-bit entries,
// exactly one physical frame.
type Table struct {
	entries [entriesPerTable]uint64
}

func tableAt(p pmm.PhysAddr) *Table {
	return (*Table)(pmm.ToVirt(p))
}

func pml4Index(va uintptr) uint64 { return uint64(va>>39) & 0x1FF }
func pdptIndex(va uintptr) uint64 { return uint64(va>>30) & 0x1FF }
func pdIndex(va uintptr) uint64   { return uint64(va>>21) & 0x1FF }
func ptIndex(va uintptr) uint64   { return uint64(va>>12) & 0x1FF }

// AddressSpace owns one process's top-level page table (or the kernel's, for
// CPUIndex-less kernel mappings).
type AddressSpace struct {
	pml4 pmm.PhysAddr
	pcp  *pmm.PerCPUCache
}

// NewAddressSpace allocates a fresh, zeroed PML4.
func NewAddressSpace(alloc *pmm.Allocator) (*AddressSpace, error) {
	f, err := alloc.Alloc(0, pmm.AllocZero)
	if err != nil {
		return nil, err
	}
	return &AddressSpace{pml4: f.Addr()}, nil
}

func (as *AddressSpace) CR3() uint64 { return uint64(as.pml4) }

func (as *AddressSpace) Activate() { arch.WriteCR3(uint64(as.pml4)) }

// walk returns the PT entry slot for va, allocating intermediate tables
// (PML4/PDPT/PD) as needed when create is true.
func (as *AddressSpace) walk(alloc *pmm.Allocator, va uintptr, create bool) *uint64 {
	cur := tableAt(as.pml4)
	for _, idx := range []uint64{pml4Index(va), pdptIndex(va), pdIndex(va)} {
		e := &cur.entries[idx]
		if *e&PTEPresent == 0 {
			if !create {
				return nil
			}
			f, err := alloc.Alloc(0, pmm.AllocZero)
			if err != nil {
				return nil
			}
			*e = uint64(f.Addr()) | PTEPresent | PTEWritable | PTEUser
		}
		cur = tableAt(pmm.PhysAddr(*e & physAddrMask))
	}
	return &cur.entries[ptIndex(va)]
}

// Map installs a present mapping for one 4 KiB page at va to physical frame
// f with the given PTE flags (Present is added automatically).
func (as *AddressSpace) Map(alloc *pmm.Allocator, va uintptr, f pmm.Frame, flags uint64) bool {
	e := as.walk(alloc, va, true)
	if e == nil {
		return false
	}
	*e = uint64(f.Addr()) | flags | PTEPresent
	return true
}

// Unmap clears va's mapping, returning the frame it had pointed at (zero
// frame if it wasn't present).
func (as *AddressSpace) Unmap(va uintptr) pmm.Frame {
	e := as.walk(nil, va, false)
	if e == nil || *e&PTEPresent == 0 {
		return 0
	}
	f := pmm.FrameOf(pmm.PhysAddr(*e & physAddrMask))
	*e = 0
	ShootdownLocal(va)
	return f
}

// Translate returns va's current PTE value and whether it's present.
func (as *AddressSpace) Translate(va uintptr) (uint64, bool) {
	e := as.walk(nil, va, false)
	if e == nil {
		return 0, false
	}
	return *e, *e&PTEPresent != 0
}

// SetEntry overwrites va's PTE outright, used by the COW fault handler that
// already computed the exact bits it wants for an existing mapping.
func (as *AddressSpace) SetEntry(va uintptr, v uint64) {
	e := as.walk(nil, va, false)
	if e != nil {
		*e = v
	}
}

// SetEntryCreate is SetEntry but allocates any missing intermediate page
// tables first, for installing a PTE in an address space that has never
// touched va before (fork/clone_cow populating the child).
func (as *AddressSpace) SetEntryCreate(alloc *pmm.Allocator, va uintptr, v uint64) {
	e := as.walk(alloc, va, true)
	if e != nil {
		*e = v
	}
}
