package virtioblk

import (
	"errors"

	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/drivers/pci"
	"github.com/sloplabs/slopos/internal/pmm"
)

const (
	vendorIDVirtIO = 0x1AF4
	deviceIDBlkLegacy = 0x1001

	// Legacy virtio-pci I/O BAR register layout (virtio 0.9.5 / "legacy").
	regDeviceFeatures = 0x00
	regGuestFeatures  = 0x04
	regQueueAddress   = 0x08
	regQueueSize      = 0x0C
	regQueueSelect    = 0x0E
	regQueueNotify    = 0x10
	regDeviceStatus   = 0x12
	regISRStatus      = 0x13
	regConfigStart    = 0x14

	statusAck       = 1
	statusDriver    = 2
	statusDriverOK  = 4
	statusFeaturesOK = 8

	queueAlignment = 4096

	sectorSize = 512

	// Request types understood by virtio-blk's device-specific header.
	blkTypeIn  = 0 // read
	blkTypeOut = 1 // write

	blkStatusOK = 0
)

var ErrNoDevice = errors.New("virtioblk: no device found")
var ErrIOError = errors.New("virtioblk: device reported an error")

// Device is one probed virtio-blk legacy PCI device with its single
// request queue set up and ready for Read/Write.
type Device struct {
	io  uint16
	vq  *virtqueue
	cap uint64 // capacity in 512-byte sectors, read from device config
}

// reqHeader is virtio-blk's per-request header (struct virtio_blk_req,
// minus the trailing data and status byte which go in their own
// descriptors).
type reqHeader struct {
	Type     uint32
	Reserved uint32
	Sector   uint64
}

// Probe finds the first legacy virtio-blk device on the PCI bus, negotiates
// no optional features (plain legacy transport, no VIRTIO_F_* bits), and
// sets up queue 0.
func Probe() (*Device, error) {
	pd, ok := pci.Find(vendorIDVirtIO, deviceIDBlkLegacy)
	if !ok {
		return nil, ErrNoDevice
	}
	pci.EnableBusMasterAndMMIO(pd.Addr)

	ioBase := pd.BAR0IOAddr()
	d := &Device{io: ioBase}

	d.outB(regDeviceStatus, 0) // reset
	d.outB(regDeviceStatus, statusAck)
	d.outB(regDeviceStatus, statusAck|statusDriver)

	d.outL(regGuestFeatures, 0) // accept nothing optional

	d.outB(regDeviceStatus, statusAck|statusDriver|statusFeaturesOK)

	d.outW(regQueueSelect, 0)
	size := d.inW(regQueueSize)
	vq, err := newVirtqueue(size)
	if err != nil {
		return nil, err
	}
	d.vq = vq
	d.outL(regQueueAddress, uint32(uint64(vq.physBase)/queueAlignment))

	d.outB(regDeviceStatus, statusAck|statusDriver|statusFeaturesOK|statusDriverOK)

	d.cap = uint64(d.inL(regConfigStart)) | uint64(d.inL(regConfigStart+4))<<32
	return d, nil
}

func (d *Device) outB(off uint16, v uint8)  { arch.OutB(d.io+off, v) }
func (d *Device) outW(off uint16, v uint16) { arch.OutW(d.io+off, v) }
func (d *Device) outL(off uint16, v uint32) { arch.OutL(d.io+off, v) }
func (d *Device) inB(off uint16) uint8      { return arch.InB(d.io + off) }
func (d *Device) inW(off uint16) uint16     { return arch.InW(d.io + off) }
func (d *Device) inL(off uint16) uint32     { return arch.InL(d.io + off) }

// Capacity returns the device's capacity in 512-byte sectors.
func (d *Device) Capacity() uint64 { return d.cap }

// ReadSectors reads len(buf)/512 sectors starting at lba into buf, blocking
// (via a poll loop on the used ring) until the device completes the
// request. buf's length must be a multiple of 512 bytes and be backed by
// HHDM-visible, physically-addressable memory (any pmm-allocated buffer
// qualifies).
func (d *Device) ReadSectors(lba uint64, buf []byte) error {
	return d.doRequest(blkTypeIn, lba, buf)
}

// WriteSectors writes buf (a multiple of 512 bytes) to lba.
func (d *Device) WriteSectors(lba uint64, buf []byte) error {
	return d.doRequest(blkTypeOut, lba, buf)
}

func (d *Device) doRequest(reqType uint32, lba uint64, buf []byte) error {
	if len(buf) == 0 || len(buf)%sectorSize != 0 {
		return errors.New("virtioblk: buffer length must be a multiple of 512 bytes")
	}

	hdr := &reqHeader{Type: reqType, Sector: lba}
	hdrPhys := pmm.FromVirt(headerPointer(hdr))
	dataPhys := pmm.FromVirt(dataPointer(buf))
	status := new(byte)
	statusPhys := pmm.FromVirt(statusPointer(status))

	dataWrite := reqType == blkTypeIn // device writes into our buffer on a read

	_, ok := d.vq.submitChain(
		[]uint64{uint64(hdrPhys), uint64(dataPhys), uint64(statusPhys)},
		[]uint32{16, uint32(len(buf)), 1},
		[]bool{false, dataWrite, true},
	)
	if !ok {
		return errors.New("virtioblk: queue full")
	}

	d.outW(regQueueNotify, 0)

	for !d.vq.hasUsed() {
		arch.Pause()
	}
	d.vq.popUsed()

	if *status != blkStatusOK {
		return ErrIOError
	}
	return nil
}
