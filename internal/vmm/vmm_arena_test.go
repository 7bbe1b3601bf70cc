package vmm

import (
	"testing"
	"unsafe"

	"github.com/sloplabs/slopos/internal/pmm"
)

// newTestArena backs a pmm.Allocator with real Go-owned memory instead of
// firmware-reported RAM: HHDM offset zero means ToVirt(p) == p numerically,
// and physBase is the address of an actual byte slice, so every frame this
// allocator hands out is a dereferenceable address in the test process,
// exactly as HHDM makes a real frame dereferenceable at boot.
func newTestArena(t *testing.T, npages int) *pmm.Allocator {
	t.Helper()
	buf := make([]byte, (npages+1)*pmm.PageSize)
	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (base + pmm.PageSize - 1) &^ uintptr(pmm.PageSize-1)

	pmm.SetHHDMOffset(0)
	m := pmm.NewRegionMap([]pmm.Region{
		{PhysBase: pmm.PhysAddr(aligned), Length: uint64(npages * pmm.PageSize), Kind: pmm.Usable},
	})
	return pmm.NewAllocator(m, pmm.ZeroViaHHDM)
}
