package sched

import "unsafe"

const unsafe_sizeofSignalFrame = unsafe.Sizeof(SignalFrame{})

// writeSignalFrame/readSignalFrame assume t's address space is the one
// currently active (CR3), true whenever these run on the trap-return path
// for the task itself, since kernel mappings are present in every address
// space and a user stack address is directly dereferenceable from kernel
// code running on that task's own page tables.
func writeSignalFrame(addr uintptr, f *SignalFrame) {
	*(*SignalFrame)(unsafe.Pointer(addr)) = *f
}

func readSignalFrame(addr uintptr) *SignalFrame {
	return (*SignalFrame)(unsafe.Pointer(addr))
}
