package pmm

import "unsafe"

// hhdmOffset is the fixed virtual offset Limine reports for the higher-half
// direct map: virt = phys + hhdmOffset for every frame HHDM covers. It's
// set once, early in boot, before anything calls ToVirt.
var hhdmOffset uint64

// SetHHDMOffset installs the offset reported by Limine's HHDM request.
func SetHHDMOffset(off uint64) { hhdmOffset = off }

// HHDMOffset returns the installed offset, for diagnostics.
func HHDMOffset() uint64 { return hhdmOffset }

// ToVirt maps a physical address into the HHDM window unconditionally; call
// sites that run before SetHHDMOffset or that might address memory outside
// the mapped window should use ToVirtChecked instead.
func ToVirt(p PhysAddr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(uint64(p) + hhdmOffset))
}

// ToVirtChecked returns false when the HHDM offset hasn't been installed
// yet, the only case (pre-HHDM early boot) where ToVirt's result would be
// meaningless.
func ToVirtChecked(p PhysAddr) (unsafe.Pointer, bool) {
	if hhdmOffset == 0 {
		return nil, false
	}
	return ToVirt(p), true
}

// FromVirt reverses ToVirt for a pointer known to lie in the HHDM window.
func FromVirt(v unsafe.Pointer) PhysAddr {
	return PhysAddr(uint64(uintptr(v)) - hhdmOffset)
}
