package syscalls

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/pmm"
	"github.com/sloplabs/slopos/internal/vmm"
)

func init() {
	register(SysBrk, "brk", handleBrk)
	register(SysMmap, "mmap", handleMmap)
	register(SysMunmap, "munmap", handleMunmap)
	register(SysMprotect, "mprotect", handleMprotect)
}

// mmapProt mirrors PROT_READ/WRITE/EXEC; mmapFlags mirrors MAP_ANONYMOUS
// (the only backing this kernel's mmap supports — file-backed mmap isn't
// implemented, per vmm.DemandNoVMA).
const (
	protRead  = 1 << 0
	protWrite = 1 << 1
	protExec  = 1 << 2

	mapAnonymous = 1 << 5
)

func protToVMAFlags(prot uint64) vmm.VMAFlags {
	f := vmm.VMAUser | vmm.VMAAnon | vmm.VMALazy
	if prot&protRead != 0 {
		f |= vmm.VMARead
	}
	if prot&protWrite != 0 {
		f |= vmm.VMAWrite
	}
	if prot&protExec != 0 {
		f |= vmm.VMAExec
	}
	return f
}

// handleBrk adjusts the heap VMA's end. Args[0] is the requested break; 0
// means "report the current break without changing it". The heap VMA is
// identified as the one whose Start equals the task's BrkBase, set once at
// exec time.
func handleBrk(ctx *Context) (Disposition, uint64) {
	t := ctx.Task
	want := uintptr(ctx.Args[0])
	heap := t.VMATree.Find(t.BrkBase)
	if heap == nil {
		return fail(errno.ENOMEM)
	}
	if want == 0 {
		return ok(uint64(heap.End))
	}
	if want < heap.Start {
		return fail(errno.EINVAL)
	}
	if t.VMATree.Overlapping(heap.End, want) != nil && want > heap.End {
		return fail(errno.ENOMEM)
	}
	t.VMATree.Remove(heap.Start)
	t.VMATree.Insert(&vmm.VMA{Start: heap.Start, End: want, Flags: heap.Flags})
	return ok(uint64(want))
}

// handleMmap implements the ANON/LAZY subset of mmap: a fixed-size
// best-effort bump search for a free range when Args[0] (addr) is 0, an
// exact-placement attempt otherwise. File-backed mmap is out of scope (this
// kernel's VFS reads file contents eagerly at open).
func handleMmap(ctx *Context) (Disposition, uint64) {
	t := ctx.Task
	addr := uintptr(ctx.Args[0])
	length := uintptr(ctx.Args[1])
	prot := ctx.Args[2]
	flags := ctx.Args[3]

	if length == 0 {
		return fail(errno.EINVAL)
	}
	length = (length + pmm.PageSize - 1) &^ (pmm.PageSize - 1)
	if flags&mapAnonymous == 0 {
		return fail(errno.EINVAL)
	}

	if addr == 0 {
		addr = t.MmapCursor
		if addr < t.MmapBase {
			addr = t.MmapBase
		}
		for t.VMATree.Overlapping(addr, addr+length) != nil {
			addr += pmm.PageSize
		}
		t.MmapCursor = addr + length
	} else if t.VMATree.Overlapping(addr, addr+length) != nil {
		return fail(errno.EINVAL)
	}

	t.VMATree.Insert(&vmm.VMA{Start: addr, End: addr + length, Flags: protToVMAFlags(prot)})
	return ok(uint64(addr))
}

// handleMunmap removes or splits whatever VMA(s) overlap [addr, addr+len),
// unmapping and freeing every page-table entry Punch reports as torn down.
func handleMunmap(ctx *Context) (Disposition, uint64) {
	t := ctx.Task
	addr := uintptr(ctx.Args[0])
	length := uintptr(ctx.Args[1])
	if length == 0 || addr%pmm.PageSize != 0 {
		return fail(errno.EINVAL)
	}
	length = (length + pmm.PageSize - 1) &^ (pmm.PageSize - 1)

	removed := t.VMATree.Punch(addr, addr+length)
	alloc := pmm.Global()
	for _, v := range removed {
		for va := v.Start; va < v.End; va += pmm.PageSize {
			if f := t.AddressSpace.Unmap(va); f != 0 {
				alloc.DecRef(f)
			}
		}
	}
	return ok(0)
}

// handleMprotect updates a range's VMA flags and, for any currently present
// page, its PTE flags, TLB-shooting afterward. The range must lie wholly
// inside one existing VMA (mprotect doesn't implicitly split/merge beyond
// that single-VMA case here).
func handleMprotect(ctx *Context) (Disposition, uint64) {
	t := ctx.Task
	addr := uintptr(ctx.Args[0])
	length := uintptr(ctx.Args[1])
	prot := ctx.Args[2]
	if length == 0 || addr%pmm.PageSize != 0 {
		return fail(errno.EINVAL)
	}
	length = (length + pmm.PageSize - 1) &^ (pmm.PageSize - 1)
	end := addr + length

	v := t.VMATree.FindCovering(addr, end)
	if v == nil {
		return fail(errno.ENOMEM)
	}

	newFlags := protToVMAFlags(prot) &^ (vmm.VMAAnon | vmm.VMALazy) | (v.Flags & (vmm.VMAAnon | vmm.VMALazy))
	t.VMATree.Remove(v.Start)
	if v.Start < addr {
		t.VMATree.Insert(&vmm.VMA{Start: v.Start, End: addr, Flags: v.Flags})
	}
	t.VMATree.Insert(&vmm.VMA{Start: addr, End: end, Flags: newFlags})
	if v.End > end {
		t.VMATree.Insert(&vmm.VMA{Start: end, End: v.End, Flags: v.Flags})
	}

	newVMA := &vmm.VMA{Flags: newFlags}
	for va := addr; va < end; va += pmm.PageSize {
		if pte, present := t.AddressSpace.Translate(va); present {
			frameBits := pte & vmm.PhysAddrMask
			t.AddressSpace.SetEntry(va, frameBits|newVMA.PTEFlags()|vmm.PTEPresent)
			vmm.ShootdownLocal(va)
		}
	}
	return ok(0)
}
