package pmm

import "unsafe"

func unsafeSlice(p unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(p), n)
}
