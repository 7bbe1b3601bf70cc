package userlib

import "unsafe"

// These convert Go values to the raw addresses the syscall ABI passes by
// pointer. Validation of the address lives kernel-side in
// internal/syscalls.TryNewUserPtr; from this side of the boundary a pointer
// is just a pointer, the same as any cgo or x/sys/unix raw syscall wrapper.

func ptrOf[T any](v *T) unsafe.Pointer { return unsafe.Pointer(v) }

func structAddr[T any](v *T) uint64 {
	if v == nil {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(v)))
}

func sliceAddr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}

func bufAddr(b []byte) uint64 { return sliceAddr(b) }

func structSizeOf[T any](v T) uintptr { return unsafe.Sizeof(v) }

// cstrAddr allocates a NUL-terminated copy of s and returns its address.
// The copy is intentionally leaked for the syscall's duration: callers pass
// it straight into a blocking or short-lived syscall, never retain it, and
// this kernel's userland has no free(3) equivalent to return it to anyway.
func cstrAddr(s string) uint64 {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return uint64(uintptr(unsafe.Pointer(&buf[0])))
}
