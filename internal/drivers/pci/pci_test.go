package pci

import "testing"

// fakeConfigSpace models enough of the CF8/CFC mechanism to drive the
// address-computation and capability-walk logic without real ports: the
// last-written address selects which register the next data-port access
// touches.
type fakeConfigSpace struct {
	lastAddr uint32
	regs     map[uint32]uint32 // key: enableBit|bus<<16|dev<<11|fn<<8|offset&^3
}

func newFakeConfigSpace() *fakeConfigSpace {
	return &fakeConfigSpace{regs: map[uint32]uint32{}}
}

func (f *fakeConfigSpace) out(port uint16, v uint32) {
	if port == configAddress {
		f.lastAddr = v
		return
	}
	f.regs[f.lastAddr] = v
}

func (f *fakeConfigSpace) in(port uint16) uint32 {
	if port == configAddress {
		return f.lastAddr
	}
	v, ok := f.regs[f.lastAddr]
	if !ok {
		// An absent function reads back all ones, like a real floating bus.
		return 0xFFFFFFFF
	}
	return v
}

func (f *fakeConfigSpace) set(a Addr, offset uint8, v uint32) {
	f.regs[address(a, offset)] = v
}

func withFake(f *fakeConfigSpace, fn func()) {
	savedOut, savedIn := outL, inL
	outL, inL = f.out, f.in
	defer func() { outL, inL = savedOut, savedIn }()
	fn()
}

func TestAddressEncodesEnableBitAndBDF(t *testing.T) {
	a := Addr{Bus: 1, Device: 2, Function: 3}
	got := address(a, 0x10)
	want := enableBit | 1<<16 | 2<<11 | 3<<8 | 0x10
	if got != want {
		t.Fatalf("address = %#x, want %#x", got, want)
	}
}

func TestAddressMasksOffsetToDwordBoundary(t *testing.T) {
	a := Addr{}
	if address(a, 0x07) != address(a, 0x04) {
		t.Fatal("offset 0x07 and 0x04 should resolve to the same dword register")
	}
}

func TestScanFindsProbedDeviceAndSkipsAbsentSlots(t *testing.T) {
	f := newFakeConfigSpace()
	target := Addr{Bus: 0, Device: 3, Function: 0}
	f.set(target, offVendorID, 0x1AF4|0x1042<<16) // vendor=virtio, device=blk
	f.set(target, offHeaderType, 0)

	var devices []Device
	withFake(f, func() { devices = Scan() })

	if len(devices) != 1 {
		t.Fatalf("Scan found %d devices, want 1", len(devices))
	}
	if devices[0].VendorID != 0x1AF4 || devices[0].DeviceID != 0x1042 {
		t.Fatalf("Scan device = %+v, want vendor=0x1AF4 device=0x1042", devices[0])
	}
}

func TestFindMatchesOnVendorAndDevice(t *testing.T) {
	f := newFakeConfigSpace()
	a := Addr{Bus: 0, Device: 5, Function: 0}
	f.set(a, offVendorID, 0x1234|0x1111<<16)

	var d Device
	var ok bool
	withFake(f, func() { d, ok = Find(0x1234, 0x1111) })

	if !ok || d.Addr != a {
		t.Fatalf("Find = (%+v, %v), want addr %+v", d, ok, a)
	}
}

func TestBAR0MemAddrMasksFlagBits(t *testing.T) {
	d := Device{BAR: [6]uint32{0xFEBF0004}}
	if got := d.BAR0MemAddr(); got != 0xFEBF0000 {
		t.Fatalf("BAR0MemAddr = %#x, want 0xfebf0000", got)
	}
}

func TestBAR0MemAddrReturnsZeroForIOSpaceBAR(t *testing.T) {
	d := Device{BAR: [6]uint32{0x0000C001}}
	if got := d.BAR0MemAddr(); got != 0 {
		t.Fatalf("BAR0MemAddr = %#x, want 0 for an I/O-space BAR", got)
	}
}

func TestCapabilitiesWalksLinkedListUntilZero(t *testing.T) {
	f := newFakeConfigSpace()
	a := Addr{Bus: 0, Device: 1, Function: 0}
	f.set(a, offStatus&^3, statusCapList<<16)
	f.set(a, offCapPtr, 0x40)
	f.set(a, 0x40, capIDMSI|0x50<<8)
	f.set(a, 0x50, capIDMSIX|0<<8)

	var caps []Capability
	withFake(f, func() { caps = Capabilities(a) })

	if len(caps) != 2 || caps[0].ID != capIDMSI || caps[1].ID != capIDMSIX {
		t.Fatalf("Capabilities = %+v, want [MSI@0x40 MSIX@0x50]", caps)
	}
}

func TestFindMSICapabilityReturnsFalseWhenAbsent(t *testing.T) {
	f := newFakeConfigSpace()
	a := Addr{Bus: 0, Device: 1, Function: 0}
	f.set(a, offStatus&^3, statusCapList<<16)
	f.set(a, offCapPtr, 0x40)
	f.set(a, 0x40, capIDMSIX|0<<8)

	var ok bool
	withFake(f, func() { _, ok = FindMSICapability(a) })

	if ok {
		t.Fatal("FindMSICapability found MSI when only MSI-X is present")
	}
}
