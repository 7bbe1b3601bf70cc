package syscalls

import "unsafe"

// structBytes views a fixed-layout struct as its raw bytes for CopyToUser,
// the kernel-side mirror of what a C ABI struct return would look like.
func structBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}

// structSize returns T's size, for sizing a CopyFromUser call that will be
// handed to bytesToStruct.
func structSize[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// bytesToStruct reinterprets a byte slice (already validated to be exactly
// unsafe.Sizeof(T) long) as T. Callers only ever pass buffers they just
// built with CopyFromUser at the matching size.
func bytesToStruct[T any](b []byte) T {
	return *(*T)(unsafe.Pointer(&b[0]))
}
