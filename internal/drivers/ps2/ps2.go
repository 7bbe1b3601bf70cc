// Package ps2 drives the legacy PS/2 keyboard controller on IRQ 1: scancode
// set 1 translation into ASCII (for the console's character stream) and
// into InputEvent records (for the compositor's input_poll family).
// Grounded on the teacher's IRQ-registration shape (irqtable.go's
// RegisterHandler) rather than any teacher driver code — mazarin never
// talks to a PS/2 controller, only a PL011 UART and a GIC.
package ps2

import (
	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/irq"
	"github.com/sloplabs/slopos/internal/ksync"
)

const (
	dataPort   = 0x60
	statusPort = 0x64

	statusOutputFull = 1 << 0

	releaseBit = 0x80
)

// scancodeSet1ASCII maps scan set 1 make codes to their unshifted US-layout
// ASCII value; 0 marks a code with no direct ASCII mapping (modifiers,
// function keys, arrows — left for a later extension since the shell only
// needs a line-oriented character stream today).
var scancodeSet1ASCII = [128]byte{
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0A: '9', 0x0B: '0',
	0x0C: '-', 0x0D: '=', 0x0E: '\b', 0x0F: '\t',
	0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
	0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',
	0x1C: '\n',
	0x1E: 'a', 0x1F: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
	0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l',
	0x2C: 'z', 0x2D: 'x', 0x2E: 'c', 0x2F: 'v', 0x30: 'b',
	0x31: 'n', 0x32: 'm',
	0x39: ' ',
}

// Event is one key transition: a key code and whether it was pressed. It
// does not import internal/syscalls (ps2 is a hardware driver;
// internal/surface is what actually imports syscalls and adapts this into
// InputEvent).
type Event struct {
	Code    uint32
	Pressed bool
}

const ringCapacity = 64

// Keyboard accumulates both a plain ASCII byte stream (for the console) and
// raw key events (for the compositor), fed by the same IRQ1 handler.
type Keyboard struct {
	ascii  *ksync.RingBuffer[byte]
	events *ksync.RingBuffer[Event]
	in     func(uint16) uint8
}

func NewKeyboard() *Keyboard {
	return &Keyboard{
		ascii:  ksync.NewRingBuffer[byte](ringCapacity),
		events: ksync.NewRingBuffer[Event](ringCapacity),
		in:     arch.InB,
	}
}

// newWithIO is the test seam.
func newWithIO(in func(uint16) uint8) *Keyboard {
	return &Keyboard{
		ascii:  ksync.NewRingBuffer[byte](ringCapacity),
		events: ksync.NewRingBuffer[Event](ringCapacity),
		in:     in,
	}
}

// Init registers the IRQ1 handler and unmasks the line.
func (k *Keyboard) Init() {
	irq.RegisterHandler(1, "ps2kbd", k, func(ctx any) { ctx.(*Keyboard).handleIRQ() })
	irq.Unmask(1)
}

func (k *Keyboard) handleIRQ() {
	scancode := k.in(dataPort)
	k.Feed(scancode)
}

// Feed processes one raw scancode byte, split out from handleIRQ so tests
// can drive it without a real IRQ or status-port handshake.
func (k *Keyboard) Feed(scancode byte) {
	pressed := scancode&releaseBit == 0
	code := scancode &^ releaseBit
	k.events.PushOverwrite(Event{Code: uint32(code), Pressed: pressed})
	if pressed {
		if c := scancodeSet1ASCII[code&0x7F]; c != 0 {
			k.ascii.PushOverwrite(c)
		}
	}
}

// ReadASCII drains up to len(buf) bytes from the accumulated character
// stream, the backing implementation for the console's fd-0 read.
func (k *Keyboard) ReadASCII(buf []byte) int {
	n := 0
	for n < len(buf) {
		c, ok := k.ascii.TryPop()
		if !ok {
			break
		}
		buf[n] = c
		n++
	}
	return n
}

// ReadChar pops a single ASCII byte, or ok=false if none is queued.
func (k *Keyboard) ReadChar() (byte, bool) { return k.ascii.TryPop() }

// PollEvent pops a single raw key event, or ok=false if none is queued.
func (k *Keyboard) PollEvent() (Event, bool) { return k.events.TryPop() }
