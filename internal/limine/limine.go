// Package limine holds the opaque request/response shapes the Limine boot
// protocol hands the kernel across the handoff: bootloader info, HHDM
// offset, memory map, framebuffer, kernel-file cmdline, RSDP, kernel
// address, MP info. Per §6 and the Non-goals, the protocol itself (the
// actual request-tag/response-pointer ABI Limine reads at link time) is an
// external collaborator this package treats as already resolved; what lives
// here is the data shape the boot orchestrator consumes once that handoff
// has happened.
package limine

// MemmapEntryType mirrors Limine's own memmap entry type tag (usable,
// reserved, ACPI reclaimable, NVS, bad memory, bootloader-reclaimable,
// kernel-and-modules, framebuffer).
type MemmapEntryType uint32

const (
	MemmapUsable MemmapEntryType = iota
	MemmapReserved
	MemmapACPIReclaimable
	MemmapACPINVS
	MemmapBadMemory
	MemmapBootloaderReclaimable
	MemmapKernelAndModules
	MemmapFramebuffer
)

// MemmapEntry is one firmware-reported physical range.
type MemmapEntry struct {
	Base   uint64
	Length uint64
	Type   MemmapEntryType
}

// FramebufferResponse describes the linear framebuffer Limine has already
// set the video mode for; internal/fbuf decodes this into its own draw
// surface.
type FramebufferResponse struct {
	Address       uint64 // physical address; caller maps it via HHDM
	Width, Height uint64
	Pitch         uint64
	BPP           uint16
	RedMaskSize, RedMaskShift     uint8
	GreenMaskSize, GreenMaskShift uint8
	BlueMaskSize, BlueMaskShift   uint8
}

// MPInfo describes one CPU Limine enumerated at boot: a BSP plus zero or
// more APs, each identified by its LAPIC id. Limine's per-CPU goto_address
// is not carried over, since this kernel's own INIT/SIPI sequence starts
// APs directly.
type MPInfo struct {
	LAPICID  uint32
	IsBSP    bool
}

// BootInfo is everything the boot orchestrator needs out of the Limine
// handoff, already validated to be present where required. A missing
// memory map is fatal (ValidateMemmap returns false); a missing
// framebuffer is a warning represented by a nil Framebuffer.
type BootInfo struct {
	BootloaderName, BootloaderVersion string
	HHDMOffset                        uint64
	Memmap                            []MemmapEntry
	Framebuffer                       *FramebufferResponse
	KernelCmdline                     string
	RSDPAddress                       uint64
	KernelPhysBase, KernelVirtBase    uint64
	CPUs                              []MPInfo
}

// ValidateMemmap reports whether info carries a usable memory map; the boot
// orchestrator treats a false result as fatal per §6 ("a missing memory map
// is fatal").
func (info *BootInfo) ValidateMemmap() bool { return len(info.Memmap) > 0 }

// HasFramebuffer reports whether Limine handed over a framebuffer; its
// absence is a warning, not a fatal condition.
func (info *BootInfo) HasFramebuffer() bool { return info.Framebuffer != nil }
