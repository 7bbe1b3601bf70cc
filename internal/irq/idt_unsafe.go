package irq

import "unsafe"

func addrOfIDT() unsafe.Pointer { return unsafe.Pointer(&idt[0]) }

// Load installs this IDT via LIDT.
func Load() {
	base, limit := Base()
	loadIDT(base, limit)
}

// loadIDT is implemented in assembly since LIDT has the same "not a Go
// mnemonic" issue as LGDT.
//
//go:nosplit
func loadIDT(base uint64, limit uint16)
