// Package pci enumerates the legacy PCI configuration space via I/O ports
// 0xCF8/0xCFC (mechanism #1). The teacher's pci_qemu.go walks the same
// bus/slot/func grid and vendor-ID-0xFFFF-means-absent check over an AArch64
// ECAM MMIO window; this is the x86_64 transport for the identical scan, one
// this kernel actually needs since it boots on real PCI rather than a
// fixed virt-machine ECAM base.
package pci

import "github.com/sloplabs/slopos/internal/arch"

// outL/inL are indirections over arch's 32-bit port I/O so tests can model
// a fake config space without touching real ports.
var (
	outL = arch.OutL
	inL  = arch.InL
)

const (
	configAddress = 0x0CF8
	configData    = 0x0CFC

	enableBit = uint32(1) << 31

	offVendorID   = 0x00
	offDeviceID   = 0x02
	offCommand    = 0x04
	offStatus     = 0x06
	offHeaderType = 0x0E
	offBAR0       = 0x10
	offCapPtr     = 0x34
	offIntLine    = 0x3C

	statusCapList = 1 << 4

	capIDMSI  = 0x05
	capIDMSIX = 0x11

	noVendor = 0xFFFF
)

// Addr identifies one PCI function by bus/device/function.
type Addr struct {
	Bus, Device, Function uint8
}

func address(a Addr, offset uint8) uint32 {
	return enableBit |
		uint32(a.Bus)<<16 |
		uint32(a.Device)<<11 |
		uint32(a.Function)<<8 |
		uint32(offset&0xFC)
}

// ReadConfig32 reads one 32-bit, 4-byte-aligned config-space register.
func ReadConfig32(a Addr, offset uint8) uint32 {
	outL(configAddress, address(a, offset))
	return inL(configData)
}

// WriteConfig32 writes one 32-bit, 4-byte-aligned config-space register.
func WriteConfig32(a Addr, offset uint8, v uint32) {
	outL(configAddress, address(a, offset))
	outL(configData, v)
}

func readConfig16(a Addr, offset uint8) uint16 {
	shift := (offset & 2) * 8
	return uint16(ReadConfig32(a, offset&^3) >> shift)
}

// Device is a probed PCI function: its address and the identifying/BAR
// fields a driver needs to claim and map it.
type Device struct {
	Addr       Addr
	VendorID   uint16
	DeviceID   uint16
	HeaderType uint8
	BAR        [6]uint32
	IRQLine    uint8
}

func probe(a Addr) (Device, bool) {
	vendor := readConfig16(a, offVendorID)
	if vendor == noVendor {
		return Device{}, false
	}
	d := Device{
		Addr:       a,
		VendorID:   vendor,
		DeviceID:   readConfig16(a, offDeviceID),
		HeaderType: uint8(ReadConfig32(a, offHeaderType) >> 16),
		IRQLine:    uint8(ReadConfig32(a, offIntLine)),
	}
	for i := range d.BAR {
		d.BAR[i] = ReadConfig32(a, offBAR0+uint8(i)*4)
	}
	return d, true
}

// multiFunction reports whether header type bit 7 is set, meaning functions
// 1-7 of this device should also be probed.
func multiFunction(headerType uint8) bool { return headerType&0x80 != 0 }

// Scan walks every bus/device/function slot and returns every present
// function, mirroring findBochsDisplay's vendor-ID-sentinel loop generalized
// to all devices rather than one hardcoded vendor/device pair.
func Scan() []Device {
	var found []Device
	for bus := 0; bus < 256; bus++ {
		for dev := 0; dev < 32; dev++ {
			a := Addr{Bus: uint8(bus), Device: uint8(dev), Function: 0}
			d, ok := probe(a)
			if !ok {
				continue
			}
			found = append(found, d)
			if !multiFunction(d.HeaderType) {
				continue
			}
			for fn := 1; fn < 8; fn++ {
				a.Function = uint8(fn)
				if d2, ok := probe(a); ok {
					found = append(found, d2)
				}
			}
		}
	}
	return found
}

// Find returns the first present device matching vendor/device ID.
func Find(vendorID, deviceID uint16) (Device, bool) {
	for _, d := range Scan() {
		if d.VendorID == vendorID && d.DeviceID == deviceID {
			return d, true
		}
	}
	return Device{}, false
}

// BAR0MemAddr returns BAR0 masked down to its memory-space base address, 0
// if BAR0 is an I/O-space BAR.
func (d Device) BAR0MemAddr() uint64 {
	bar := d.BAR[0]
	if bar&1 != 0 {
		return 0
	}
	if bar&0x6 == 0x4 && len(d.BAR) > 1 {
		return uint64(bar&0xFFFFFFF0) | uint64(d.BAR[1])<<32
	}
	return uint64(bar & 0xFFFFFFF0)
}

// BAR0IOAddr returns BAR0's I/O-space port base, 0 if BAR0 is memory-space.
func (d Device) BAR0IOAddr() uint16 {
	bar := d.BAR[0]
	if bar&1 == 0 {
		return 0
	}
	return uint16(bar &^ 0x3)
}

// EnableBusMasterAndMMIO sets the command register's bus-master and
// memory-space-enable bits, required before a device can DMA or respond to
// MMIO BAR accesses.
func EnableBusMasterAndMMIO(a Addr) {
	cmd := readConfig16(a, offCommand)
	cmd |= 1<<1 | 1<<2 // memory space enable, bus master enable
	full := ReadConfig32(a, offCommand&^3)
	full = full&0xFFFF0000 | uint32(cmd)
	WriteConfig32(a, offCommand&^3, full)
}

// Capability is one entry of a device's linked capability list.
type Capability struct {
	ID     uint8
	Offset uint8
}

// Capabilities walks the capability linked list rooted at offCapPtr,
// returning every entry found; empty if the device's status register
// doesn't advertise a capability list.
func Capabilities(a Addr) []Capability {
	status := readConfig16(a, offStatus)
	if status&statusCapList == 0 {
		return nil
	}
	var caps []Capability
	next := uint8(ReadConfig32(a, offCapPtr) & 0xFC)
	seen := map[uint8]bool{}
	for next != 0 && !seen[next] {
		seen[next] = true
		header := ReadConfig32(a, next)
		id := uint8(header)
		caps = append(caps, Capability{ID: id, Offset: next})
		next = uint8(header>>8) & 0xFC
	}
	return caps
}

// FindMSICapability returns the offset of the device's MSI (not MSI-X)
// capability, if any.
func FindMSICapability(a Addr) (uint8, bool) {
	for _, c := range Capabilities(a) {
		if c.ID == capIDMSI {
			return c.Offset, true
		}
	}
	return 0, false
}
