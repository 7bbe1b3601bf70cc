package virtioblk

import "unsafe"

// headerPointer, dataPointer, and statusPointer convert Go-owned memory
// into the unsafe.Pointer form pmm.FromVirt needs. The request header and
// status byte are small enough to live on the stack or heap normally;
// they're only interesting here because the device DMAs into/out of them,
// so the caller must not let them move (no escape to a relocating
// allocator applies: this kernel's GC-less allocator never moves live
// objects once placed in the HHDM-backed heap).
func headerPointer(h *reqHeader) unsafe.Pointer { return unsafe.Pointer(h) }
func dataPointer(b []byte) unsafe.Pointer       { return unsafe.Pointer(unsafe.SliceData(b)) }
func statusPointer(s *byte) unsafe.Pointer      { return unsafe.Pointer(s) }
