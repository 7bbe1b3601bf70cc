package pmm

import "github.com/sloplabs/slopos/internal/ksync"

var (
	initFlag ksync.InitFlag
	global   *Allocator
	regions  *RegionMap
)

// Init builds the canonical region map from the Limine-reported entries plus
// boot-time overlays (framebuffer, ACPI, APIC MMIO, kernel image, allocator
// metadata) and constructs the global allocator over it. zeroFn clears a
// frame through its HHDM mapping; boot passes pmm.ZeroViaHHDM once the HHDM
// offset is known.
func Init(firmware []Region, overlays []Region, zeroFn func(Frame)) *Allocator {
	if !initFlag.InitOnce() {
		return global
	}
	regions = NewRegionMap(firmware)
	for _, ov := range overlays {
		regions.Overlay(ov.PhysBase, ov.Length, ov.Kind, ov.Label)
	}
	global = NewAllocator(regions, zeroFn)
	return global
}

// Global returns the allocator built by Init; callers must not retain it
// across a re-Init (which never happens outside tests).
func Global() *Allocator { return global }

// Regions returns the canonical memory-region map built by Init.
func Regions() *RegionMap { return regions }

// ZeroViaHHDM clears a frame's contents through its HHDM mapping. Suitable
// as the zeroFn passed to Init once pmm.SetHHDMOffset has run.
func ZeroViaHHDM(f Frame) {
	p := ToVirt(f.Addr())
	buf := unsafeSlice(p, PageSize)
	for i := range buf {
		buf[i] = 0
	}
}
