package irq

import "github.com/sloplabs/slopos/internal/ksync"

// msiSlot is one MSI vector's handler binding plus the PCI BDF it belongs
// to, for diagnostics.
type msiSlot struct {
	allocated bool
	handler   Handler
	ctx       any
	bdf       uint32
}

var (
	msiTable [MSIEnd - MSIBase]msiSlot
	msiBitmap ksync.IrqMutex[[MSIEnd - MSIBase]bool]
)

func init() {
	msiBitmap = *ksync.NewIrqMutex([MSIEnd - MSIBase]bool{})
	// SYSCALL_VECTOR falls inside [MSIBase, MSIEnd); carve it out up front
	// so Alloc can never return it.
	g := msiBitmap.Lock()
	g.Get()[SyscallVector-MSIBase] = true
	g.Get()[TLBShootdownVector-MSIBase] = true
	g.Get()[RescheduleVector-MSIBase] = true
	g.Unlock()
}

// RegisterIPIHandler binds a handler directly to a reserved IPI vector
// (TLBShootdownVector or RescheduleVector), bypassing AllocVector since
// these vectors are reserved at init, not dynamically allocated.
func RegisterIPIHandler(v uint8, h Handler) {
	msiTable[v-MSIBase] = msiSlot{allocated: true, handler: h}
}

// AllocVector returns the lowest free vector in [MSIBase, MSIEnd), excluding
// SyscallVector.
func AllocVector() (uint8, bool) {
	g := msiBitmap.Lock()
	defer g.Unlock()
	bm := g.Get()
	for i := range bm {
		if !bm[i] {
			bm[i] = true
			return uint8(MSIBase + i), true
		}
	}
	return 0, false
}

// FreeVector releases a vector obtained from AllocVector and clears any
// handler bound to it.
func FreeVector(v uint8) {
	if v < MSIBase || v >= MSIEnd || v == SyscallVector || v == TLBShootdownVector || v == RescheduleVector {
		return
	}
	g := msiBitmap.Lock()
	g.Get()[v-MSIBase] = false
	g.Unlock()
	msiTable[v-MSIBase] = msiSlot{}
}

// IsAllocated reports whether v is currently in use.
func IsAllocated(v uint8) bool {
	if v < MSIBase || v >= MSIEnd {
		return false
	}
	g := msiBitmap.Lock()
	defer g.Unlock()
	return g.Get()[v-MSIBase]
}

// AllocatedCount reports how many MSI vectors are currently in use.
func AllocatedCount() int {
	g := msiBitmap.Lock()
	defer g.Unlock()
	n := 0
	for _, b := range g.Get() {
		if b {
			n++
		}
	}
	return n
}

// RegisterMSIHandler binds a handler to an already-allocated vector inside
// the MSI window, tagging it with the owning device's PCI bus/device/func.
func RegisterMSIHandler(v uint8, bdf uint32, ctx any, h Handler) {
	if v < MSIBase || v >= MSIEnd {
		return
	}
	msiTable[v-MSIBase] = msiSlot{allocated: true, handler: h, ctx: ctx, bdf: bdf}
}

func dispatchMSI(v uint8, eoi func()) {
	slot := &msiTable[v-MSIBase]
	if slot.handler != nil {
		slot.handler(slot.ctx)
	}
	if eoi != nil {
		eoi()
	}
}
