// Package pit drives the legacy 8253/8254 Programmable Interval Timer on
// IRQ 0, the fallback timer source when the LAPIC's own timer hasn't been
// calibrated yet (§4.I's Drivers phase: "timer (PIT or APIC)"). Grounded on
// the teacher's CNTV_* generic-timer driver (timer_qemu.go) in shape only —
// same "program a divisor, register the tick handler, count ticks" flow,
// different hardware (a fixed 1.193182 MHz counter behind two I/O ports
// instead of a per-core system register).
package pit

import (
	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/irq"
	"github.com/sloplabs/slopos/internal/sched"
)

const (
	baseFrequencyHz = 1193182

	channel0Data = 0x40
	commandPort  = 0x43

	modeSquareWave = 0x36 // channel 0, lobyte/hibyte, mode 3, binary
)

const irqLine = 0

// Init programs channel 0 for hz and registers IRQ 0's handler to call
// sched.Tick() once per interrupt, the same role uartInit/timer_qemu's
// init plays of wiring a periodic source into the scheduler's quantum
// accounting.
func Init(hz uint32) {
	divisor := Divisor(hz)
	arch.OutB(commandPort, modeSquareWave)
	arch.OutB(channel0Data, uint8(divisor&0xFF))
	arch.OutB(channel0Data, uint8(divisor>>8))
	irq.RegisterHandler(irqLine, "pit", nil, func(any) { sched.Tick() })
	irq.Unmask(irqLine)
}

// Divisor computes the channel-0 reload value for a target frequency,
// split out from Init so the arithmetic can be tested without touching
// real I/O ports.
func Divisor(hz uint32) uint16 {
	if hz == 0 {
		return 0xFFFF // largest 16-bit reload value, the slowest programmable rate
	}
	return uint16(baseFrequencyHz / hz)
}
