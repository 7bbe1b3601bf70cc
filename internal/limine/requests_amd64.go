package limine

import "unsafe"

// This file is the one place SlopOS actually speaks the Limine boot
// protocol's wire format: the fixed request/response struct layouts the
// bootloader and kernel agree on, placed in the `.requests` link section a
// Limine-compliant linker script carves out. Everything else in this
// package (BootInfo and friends) is the already-resolved shape the rest of
// the kernel consumes; Handoff is the one function that bridges the two.

var commonMagic = [2]uint64{0xc7b1dd30df4c8b88, 0x0a82e883a194f07b}

type bootloaderInfoRequest struct {
	id       [4]uint64
	revision uint64
	response *bootloaderInfoResponse
}

type bootloaderInfoResponse struct {
	revision uint64
	name     *byte
	version  *byte
}

var bootloaderInfoReq = bootloaderInfoRequest{
	id: [4]uint64{commonMagic[0], commonMagic[1], 0xf55038d8e2a1202f, 0x279426fcf5f59740},
}

type hhdmRequest struct {
	id       [4]uint64
	revision uint64
	response *hhdmResponse
}

type hhdmResponse struct {
	revision uint64
	offset   uint64
}

var hhdmReq = hhdmRequest{
	id: [4]uint64{commonMagic[0], commonMagic[1], 0x48dcf1cb8ad2b852, 0x63984e959a98244b},
}

type memmapEntryRaw struct {
	base, length uint64
	typ          uint64
}

type memmapRequest struct {
	id       [4]uint64
	revision uint64
	response *memmapResponse
}

type memmapResponse struct {
	revision   uint64
	entryCount uint64
	entries    **memmapEntryRaw
}

var memmapReq = memmapRequest{
	id: [4]uint64{commonMagic[0], commonMagic[1], 0x67cf3d9d378a806f, 0xe304acdfc50c3c62},
}

type framebufferRaw struct {
	address                                  unsafe.Pointer
	width, height, pitch                     uint64
	bpp                                      uint16
	memoryModel                              uint8
	redMaskSize, redMaskShift                uint8
	greenMaskSize, greenMaskShift            uint8
	blueMaskSize, blueMaskShift              uint8
	unused                                   [7]uint8
	edidSize                                 uint64
	edid                                     unsafe.Pointer
	modeCount                                uint64
	modes                                    unsafe.Pointer
}

type framebufferRequest struct {
	id       [4]uint64
	revision uint64
	response *framebufferResponseRaw
}

type framebufferResponseRaw struct {
	revision         uint64
	framebufferCount uint64
	framebuffers     **framebufferRaw
}

var framebufferReq = framebufferRequest{
	id: [4]uint64{commonMagic[0], commonMagic[1], 0x9d5827dcd881dd75, 0xa3148604f6fab11b},
}

type kernelFileRaw struct {
	revision uint64
	address  unsafe.Pointer
	size     uint64
	path     *byte
	cmdline  *byte
}

type kernelFileRequest struct {
	id       [4]uint64
	revision uint64
	response *kernelFileResponse
}

type kernelFileResponse struct {
	revision uint64
	file     *kernelFileRaw
}

var kernelFileReq = kernelFileRequest{
	id: [4]uint64{commonMagic[0], commonMagic[1], 0xad97e90e83f1ed67, 0x31eb5d1c5ff23b69},
}

type rsdpRequest struct {
	id       [4]uint64
	revision uint64
	response *rsdpResponse
}

type rsdpResponse struct {
	revision uint64
	address  unsafe.Pointer
}

var rsdpReq = rsdpRequest{
	id: [4]uint64{commonMagic[0], commonMagic[1], 0xc5e77b6b397e7b43, 0x27637845accdcf3c},
}

type kernelAddressRequest struct {
	id       [4]uint64
	revision uint64
	response *kernelAddressResponse
}

type kernelAddressResponse struct {
	revision      uint64
	physicalBase  uint64
	virtualBase   uint64
}

var kernelAddressReq = kernelAddressRequest{
	id: [4]uint64{commonMagic[0], commonMagic[1], 0x71ba76863cc55f63, 0xb2644a48c516a487},
}

type mpInfoRaw struct {
	processorID   uint32
	lapicID       uint32
	reserved      uint64
	gotoAddress   uint64
	extraArgument uint64
}

type mpRequest struct {
	id       [4]uint64
	revision uint64
	response *mpResponse
}

type mpResponse struct {
	revision    uint64
	flags       uint32
	bspLapicID  uint32
	cpuCount    uint64
	cpus        **mpInfoRaw
}

var mpReq = mpRequest{
	id: [4]uint64{commonMagic[0], commonMagic[1], 0x95a67b819a1b857e, 0xa0b61b723b6a73e0},
}

func cString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(n))) != 0 {
		n++
	}
	return unsafe.String(p, n)
}

// Handoff reads every populated Limine response and assembles a BootInfo.
// Requests the bootloader didn't honor (nil response) leave the
// corresponding BootInfo field at its zero value; ValidateMemmap/
// HasFramebuffer are how callers are expected to notice.
func Handoff() *BootInfo {
	info := &BootInfo{}

	if r := bootloaderInfoReq.response; r != nil {
		info.BootloaderName = cString(r.name)
		info.BootloaderVersion = cString(r.version)
	}
	if r := hhdmReq.response; r != nil {
		info.HHDMOffset = r.offset
	}
	if r := memmapReq.response; r != nil {
		entries := unsafe.Slice(r.entries, r.entryCount)
		info.Memmap = make([]MemmapEntry, r.entryCount)
		for i, e := range entries {
			info.Memmap[i] = MemmapEntry{Base: e.base, Length: e.length, Type: MemmapEntryType(e.typ)}
		}
	}
	if r := framebufferReq.response; r != nil && r.framebufferCount > 0 {
		raws := unsafe.Slice(r.framebuffers, r.framebufferCount)
		fb := raws[0]
		info.Framebuffer = &FramebufferResponse{
			Address:       uint64(uintptr(fb.address)),
			Width:         fb.width,
			Height:        fb.height,
			Pitch:         fb.pitch,
			BPP:           fb.bpp,
			RedMaskSize:   fb.redMaskSize,
			RedMaskShift:  fb.redMaskShift,
			GreenMaskSize: fb.greenMaskSize,
			GreenMaskShift: fb.greenMaskShift,
			BlueMaskSize:  fb.blueMaskSize,
			BlueMaskShift: fb.blueMaskShift,
		}
	}
	if r := kernelFileReq.response; r != nil && r.file != nil {
		info.KernelCmdline = cString(r.file.cmdline)
	}
	if r := rsdpReq.response; r != nil {
		info.RSDPAddress = uint64(uintptr(r.address))
	}
	if r := kernelAddressReq.response; r != nil {
		info.KernelPhysBase = r.physicalBase
		info.KernelVirtBase = r.virtualBase
	}
	if r := mpReq.response; r != nil && r.cpuCount > 0 {
		raws := unsafe.Slice(r.cpus, r.cpuCount)
		info.CPUs = make([]MPInfo, r.cpuCount)
		for i, c := range raws {
			info.CPUs[i] = MPInfo{LAPICID: c.lapicID, IsBSP: c.lapicID == r.bspLapicID}
		}
	}

	return info
}
