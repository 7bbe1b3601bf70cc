package vmm

import "github.com/sloplabs/slopos/internal/pmm"

// DemandError enumerates why a demand-paging attempt didn't produce a
// mapping; mapped onto the errno taxonomy by internal/syscalls, which avoids
// errno needing to depend on vmm's types.
type DemandError int

const (
	DemandOK DemandError = iota
	DemandNoVMA
	DemandPermissionDenied
	DemandOOM
)

// FaultKind describes the access that trapped.
type FaultKind struct {
	Write   bool
	User    bool
	Execute bool
}

// IsDemandFault reports whether addr's fault looks like a lazy first-touch
// rather than a genuine access violation: no PTE present, but a VMA with
// VMALazy covers the address.
func IsDemandFault(as *AddressSpace, tree *Tree, addr uintptr) (*VMA, bool) {
	if _, present := as.Translate(addr); present {
		return nil, false
	}
	v := tree.Find(addr)
	if v == nil || v.Flags&VMALazy == 0 {
		return nil, false
	}
	return v, true
}

// HandleDemandFault resolves a demand fault: permission-checks the access
// against the VMA, allocates a zeroed frame for an anonymous VMA, and maps
// it with the VMA's translated PTE flags.
func HandleDemandFault(alloc *pmm.Allocator, as *AddressSpace, v *VMA, addr uintptr, kind FaultKind) DemandError {
	if kind.Write && v.Flags&VMAWrite == 0 {
		return DemandPermissionDenied
	}
	if kind.User && v.Flags&VMAUser == 0 {
		return DemandPermissionDenied
	}
	if kind.Execute && v.Flags&VMAExec == 0 {
		return DemandPermissionDenied
	}

	pageVA := addr &^ (pmm.PageSize - 1)
	if v.Flags&VMAAnon == 0 {
		// File-backed demand paging isn't implemented; ramfs/ext2 content is
		// read eagerly at open, never mmap'd lazily.
		return DemandNoVMA
	}
	f, err := alloc.Alloc(0, pmm.AllocZero)
	if err != nil {
		return DemandOOM
	}
	if !as.Map(alloc, pageVA, f, v.PTEFlags()) {
		alloc.Free(f)
		return DemandOOM
	}
	return DemandOK
}
