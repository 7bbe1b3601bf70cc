package irq

import "github.com/sloplabs/slopos/internal/arch"

// LAPIC register offsets this kernel uses, from the Intel SDM.
const (
	lapicID       = 0x020
	lapicEOI      = 0x0B0
	lapicSpurious = 0x0F0
	lapicICRLo    = 0x300
	lapicICRHi    = 0x310
	lapicTimerLVT = 0x320
	lapicTimerInit = 0x380
	lapicTimerCur  = 0x390
	lapicTimerDiv  = 0x3E0
)

// LAPIC wraps a CPU-local APIC's MMIO window, one per CPU but all mapped at
// the same physical base.
type LAPIC struct {
	mmio arch.MmioRegion
}

func NewLAPIC(mmio arch.MmioRegion) *LAPIC { return &LAPIC{mmio: mmio} }

// Enable sets the spurious-interrupt vector and the APIC-enable bit.
func (l *LAPIC) Enable() {
	l.mmio.Write32(lapicSpurious, uint32(SpuriousVector)|0x100)
}

func (l *LAPIC) ID() uint32 { return l.mmio.Read32(lapicID) >> 24 }

// EOI signals end-of-interrupt for the currently-in-service vector.
func (l *LAPIC) EOI() { l.mmio.Write32(lapicEOI, 0) }

// SendIPI issues an inter-processor interrupt to destination APIC id with
// the given vector, used for TLB shootdown and reschedule kicks.
func (l *LAPIC) SendIPI(destAPICID uint32, vector uint8) {
	l.mmio.Write32(lapicICRHi, destAPICID<<24)
	l.mmio.Write32(lapicICRLo, uint32(vector))
}

// deliveryMode occupies ICR_LOW bits 8:10; INIT and Startup are the two
// modes SMP bring-up needs beyond SendIPI's implicit Fixed (0b000).
const (
	deliveryModeInit    = 5 << 8
	deliveryModeStartup = 6 << 8
)

// SendINIT asserts INIT to destAPICID, the first half of the INIT-SIPI-SIPI
// AP bring-up sequence. The caller is expected to hold it briefly (the SDM
// calls for roughly 10ms) before following with SendSIPI.
func (l *LAPIC) SendINIT(destAPICID uint32) {
	l.mmio.Write32(lapicICRHi, destAPICID<<24)
	l.mmio.Write32(lapicICRLo, deliveryModeInit)
}

// SendSIPI issues a Startup IPI pointing the target AP at a real-mode entry
// page: vector N means "start executing at physical address N*0x1000". The
// SDM calls for sending this twice, a few hundred microseconds apart.
func (l *LAPIC) SendSIPI(destAPICID uint32, startPage uint8) {
	l.mmio.Write32(lapicICRHi, destAPICID<<24)
	l.mmio.Write32(lapicICRLo, deliveryModeStartup|uint32(startPage))
}

// SendIPIAll broadcasts to every other CPU (shorthand destination, bits
// 18:19 = 0b11 excluding self).
func (l *LAPIC) SendIPIAll(vector uint8) {
	const destShorthandAllExcludingSelf = 3 << 18
	l.mmio.Write32(lapicICRLo, uint32(vector)|destShorthandAllExcludingSelf)
}

// StartTimer arms the LAPIC timer in periodic mode at divisor div with
// initial count.
func (l *LAPIC) StartTimer(vector uint8, div uint32, initialCount uint32) {
	const periodic = 1 << 17
	l.mmio.Write32(lapicTimerDiv, div)
	l.mmio.Write32(lapicTimerLVT, uint32(vector)|periodic)
	l.mmio.Write32(lapicTimerInit, initialCount)
}

func (l *LAPIC) TimerCurrentCount() uint32 { return l.mmio.Read32(lapicTimerCur) }
