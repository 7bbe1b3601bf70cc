package pcr

import "unsafe"

// TSS is the 64-bit Task State Segment. Only RSP0 (the kernel stack loaded
// on a ring3->ring0 transition via SYSCALL/interrupt) and the three IST
// stack pointers this kernel uses (double-fault, NMI, machine-check) are
// meaningful in long mode; the I/O bitmap is left absent (offset = struct
// size, so the bitmap reads as "not present").
type TSS struct {
	reserved0 uint32
	RSP0      uint64
	rsp1      uint64
	rsp2      uint64
	reserved1 uint64
	ist       [7]uint64 // IST1..IST7, index 0 unused (IST index 0 means "no IST")
	reserved2 uint64
	reserved3 uint16
	ioMapBase uint16
}

const tssSize = int(unsafe.Sizeof(TSS{}))

const (
	ISTDoubleFault = 1
	ISTNMI         = 2
	ISTMachineCheck = 3
)

func (t *TSS) addr() uintptr { return uintptr(unsafe.Pointer(t)) }

// SetRSP0 points the kernel-mode stack used on privilege-level transitions
// at the given task's kernel stack top.
func (t *TSS) SetRSP0(top uintptr) { t.RSP0 = uint64(top) }

// SetISTStacks installs the three IST stacks this kernel reserves. stacks
// must have at least 3 entries (double-fault, NMI, machine-check); the
// first byte past the end of each slice is used as the stack top since
// stacks grow down.
func (t *TSS) SetISTStacks(stacks [][]byte) {
	top := func(s []byte) uint64 { return uint64(uintptr(unsafe.Pointer(&s[len(s)-1]))) + 1 }
	t.ist[ISTDoubleFault-1] = top(stacks[0])
	t.ist[ISTNMI-1] = top(stacks[1])
	t.ist[ISTMachineCheck-1] = top(stacks[2])
	t.ioMapBase = uint16(tssSize)
}

// LoadSelector executes LTR for this CPU's TSS selector.
func (t *TSS) LoadSelector() {
	ltr(TSSSelector)
}

//go:nosplit
func ltr(selector uint16)
