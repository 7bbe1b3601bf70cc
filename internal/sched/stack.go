package sched

import "unsafe"

func stackBaseAddr(s []byte) uintptr {
	return uintptr(unsafe.Pointer(&s[0]))
}

func writeUint64(addr uintptr, v uint64) {
	*(*uint64)(unsafe.Pointer(addr)) = v
}
