package irq

import "github.com/sloplabs/slopos/internal/arch"

// IOAPIC register offsets: the IOAPIC is accessed indirectly through a
// select/window register pair rather than being densely memory-mapped.
const (
	ioregsel = 0x00
	iowin    = 0x10

	ioapicVer   = 0x01
	ioredtblBase = 0x10 // each entry is 2 32-bit registers, indexed 2*gsi
)

// RedirectionFlags are the writable bits of an IOAPIC redirection table
// entry: polarity, trigger mode, mask, destination mode.
type RedirectionFlags uint32

const (
	PolarityActiveLow  RedirectionFlags = 1 << 13
	TriggerLevel       RedirectionFlags = 1 << 15
	Masked             RedirectionFlags = 1 << 16
	DestModeLogical    RedirectionFlags = 1 << 11
)

// Controller is one IOAPIC discovered from the ACPI MADT.
type Controller struct {
	mmio    arch.MmioRegion
	gsiBase uint32
}

func NewController(mmio arch.MmioRegion, gsiBase uint32) *Controller {
	return &Controller{mmio: mmio, gsiBase: gsiBase}
}

func (c *Controller) GSIBase() uint32 { return c.gsiBase }

// MaxRedirectionEntry reads how many GSIs this controller covers.
func (c *Controller) MaxRedirectionEntry() uint32 {
	return (c.read(ioapicVer) >> 16) & 0xFF
}

func (c *Controller) Covers(gsi uint32) bool {
	return gsi >= c.gsiBase && gsi <= c.gsiBase+c.MaxRedirectionEntry()
}

func (c *Controller) read(reg uint32) uint32 {
	c.mmio.Write32(ioregsel, reg)
	return c.mmio.Read32(iowin)
}

func (c *Controller) write(reg uint32, v uint32) {
	c.mmio.Write32(ioregsel, reg)
	c.mmio.Write32(iowin, v)
}

// ConfigIRQ programs gsi's redirection entry to deliver vector to
// lapicID with the given flags. gsi is relative to this controller's base.
func (c *Controller) ConfigIRQ(gsi uint32, vector uint8, lapicID uint32, flags RedirectionFlags) {
	local := gsi - c.gsiBase
	lo := uint32(ioredtblBase) + local*2
	hi := lo + 1
	c.write(hi, lapicID<<24)
	c.write(lo, uint32(vector)|uint32(flags))
}

func (c *Controller) setMask(gsi uint32, masked bool) {
	local := gsi - c.gsiBase
	lo := uint32(ioredtblBase + local*2)
	v := c.read(lo)
	if masked {
		v |= uint32(Masked)
	} else {
		v &^= uint32(Masked)
	}
	c.write(lo, v)
}

func (c *Controller) MaskGSI(gsi uint32)   { c.setMask(gsi, true) }
func (c *Controller) UnmaskGSI(gsi uint32) { c.setMask(gsi, false) }

// SourceOverride records an ACPI MADT interrupt source override: legacy ISA
// IRQ n is actually wired to GSI Gsi with the given polarity/trigger flags.
type SourceOverride struct {
	ISAIRQ uint8
	GSI    uint32
	Flags  RedirectionFlags
}

// Router resolves legacy IRQ numbers to GSIs, honoring source overrides, and
// picks the controller responsible for a given GSI.
type Router struct {
	controllers []*Controller
	overrides   map[uint8]SourceOverride
}

func NewRouter(controllers []*Controller, overrides []SourceOverride) *Router {
	m := make(map[uint8]SourceOverride, len(overrides))
	for _, o := range overrides {
		m[o.ISAIRQ] = o
	}
	return &Router{controllers: controllers, overrides: m}
}

// Resolve returns the GSI and flags for legacy IRQ line irq, identity-mapped
// unless an override says otherwise.
func (r *Router) Resolve(irqLine uint8) (gsi uint32, flags RedirectionFlags) {
	if o, ok := r.overrides[irqLine]; ok {
		return o.GSI, o.Flags
	}
	return uint32(irqLine), 0
}

// ControllerFor returns the controller covering gsi, if any.
func (r *Router) ControllerFor(gsi uint32) (*Controller, bool) {
	for _, c := range r.controllers {
		if c.Covers(gsi) {
			return c, true
		}
	}
	return nil, false
}
