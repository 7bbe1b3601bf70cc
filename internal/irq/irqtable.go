package irq

import (
	"sync/atomic"

	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/ksync"
)

// Handler processes an IRQ; ctx is the opaque context pointer the driver
// registered alongside it.
type Handler func(ctx any)

// IrqEntry is one legacy IRQ line's bookkeeping, mirroring the handler-array
// style of mazboot's interruptHandlers but carrying the diagnostics fields
// the spec's dispatch path stamps on every call.
type IrqEntry struct {
	handler          Handler
	ctx              any
	name             string
	count            atomic.Uint64
	lastTimestamp    atomic.Uint64
	masked           atomic.Bool
	reportedUnhandled atomic.Bool
}

// IrqRouteState records how a legacy line is currently routed, filled in by
// IOAPIC discovery honoring ACPI source overrides.
type IrqRouteState struct {
	ViaIOAPIC bool
	GSI       uint32
}

var (
	table  [IRQLines]IrqEntry
	routes [IRQLines]IrqRouteState
	tableLock ksync.IrqMutex[struct{}]

	// trapExitHook is invoked after every dispatched IRQ, registered by
	// sched.Init so the scheduler can act on a pending preemption without
	// irq importing sched.
	trapExitHook = func() {}

	// eoiHook signals end-of-interrupt on whatever APIC is live; registered
	// by internal/boot's Drivers phase once the LAPIC is constructed, since
	// this package only drives the IOAPIC/LAPIC MMIO windows, it doesn't
	// own the single shared instance internal/boot constructs.
	eoiHook = func() {}
)

// RegisterTrapExitHook installs the scheduler's post-IRQ hook.
func RegisterTrapExitHook(f func()) { trapExitHook = f }

// RegisterEOI installs the LAPIC's end-of-interrupt hook.
func RegisterEOI(f func()) { eoiHook = f }

// SendEOI signals end-of-interrupt via the registered hook; the trap entry
// trampoline passes this directly as Dispatch's eoi argument.
func SendEOI() { eoiHook() }

// RegisterHandler stores the handler for irq and unmasks the line.
func RegisterHandler(line int, name string, ctx any, h Handler) {
	e := &table[line]
	e.handler = h
	e.ctx = ctx
	e.name = name
	e.masked.Store(false)
}

// Mask/Unmask flip a line's software mask; IOAPIC-backed lines also get
// their redirection entry's mask bit flipped by the caller.
func Mask(line int)   { table[line].masked.Store(true) }
func Unmask(line int) { table[line].masked.Store(false) }

func Route(line int) IrqRouteState     { return routes[line] }
func SetRoute(line int, r IrqRouteState) { routes[line] = r }

// Stats reports an IRQ line's dispatch count and whether it was ever seen
// with no handler registered.
func Stats(line int) (count uint64, unhandled bool) {
	e := &table[line]
	return e.count.Load(), e.reportedUnhandled.Load()
}

// FrameCSRIP is the minimal slice of an interrupt frame this package needs
// to assert against corruption: AssertFrameIntact compares one sample taken
// before a handler runs with one taken after.
type FrameCSRIP struct {
	CS  uint64
	RIP uint64
}

// ErrCorruptFrame is panicked (not returned) when a handler corrupts CS/RIP,
// matching the spec's "IRQ-handler panics are fatal" rule.
type ErrCorruptFrame struct{ Before, After FrameCSRIP }

func (e ErrCorruptFrame) Error() string { return "irq: handler corrupted CS/RIP" }

// Dispatch handles vector v: legacy lines route by table lookup, vectors in
// the MSI window go to dispatchMSI, and any other vector is ignored. It
// calls the scheduler's trap-exit hook once the handler (if any) returns.
func Dispatch(v uint8, eoi func()) {
	switch {
	case v >= IRQBase && int(v) < IRQBase+IRQLines:
		dispatchLegacy(int(v)-IRQBase, eoi)
	case v >= MSIBase && v < MSIEnd:
		dispatchMSI(v, eoi)
	}
	trapExitHook()
}

// AssertFrameIntact panics with ErrCorruptFrame if the interrupt frame's
// CS/RIP changed across a handler call that should never have touched them.
// The entry trampoline samples before and after Dispatch and calls this.
func AssertFrameIntact(before, after FrameCSRIP) {
	if before != after {
		panic(ErrCorruptFrame{Before: before, After: after})
	}
}

func dispatchLegacy(line int, eoi func()) {
	if line < 0 || line >= IRQLines {
		return
	}
	e := &table[line]
	if e.masked.Load() {
		if eoi != nil {
			eoi()
		}
		return
	}

	g := tableLock.Lock()
	h, ctx := e.handler, e.ctx
	e.count.Add(1)
	e.lastTimestamp.Store(arch.RDTSC())
	g.Unlock()

	if h == nil {
		e.reportedUnhandled.Store(true)
	} else {
		h(ctx)
	}
	if eoi != nil {
		eoi()
	}
}
