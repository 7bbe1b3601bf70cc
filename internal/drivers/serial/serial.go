// Package serial drives the 16550 UART at COM1 (port 0x3F8), the x86_64
// analogue of the teacher's PL011 uartInit/uartPutc/uartGetc (mazarin's
// kernel.go): same busy-wait-on-status-bit shape, a different register
// layout (I/O ports instead of MMIO, a line-status register instead of a
// flag register).
package serial

import "github.com/sloplabs/slopos/internal/arch"

const (
	com1 = 0x3F8

	regData        = com1 + 0
	regIntEnable   = com1 + 1
	regFIFOCtrl    = com1 + 2
	regLineCtrl    = com1 + 3
	regModemCtrl   = com1 + 4
	regLineStatus  = com1 + 5

	lineStatusTxEmpty = 1 << 5
	lineStatusRxReady = 1 << 0
)

// Port is one 16550 UART instance; COM1 is the only one this kernel's boot
// sequence programs, but the type isn't a singleton so tests can exercise
// the bit-banging logic without touching real I/O ports.
type Port struct {
	out func(port uint16, v uint8)
	in  func(port uint16) uint8
}

// NewCOM1 initializes COM1 exactly as uartInit initializes PL011: disable
// interrupts, set the baud divisor, 8N1 framing, enable and clear the FIFO,
// assert DTR/RTS/OUT2.
func NewCOM1() *Port {
	p := &Port{out: arch.OutB, in: arch.InB}
	p.init()
	return p
}

// newWithIO is the test seam: a fake in/out pair standing in for real ports.
func newWithIO(out func(uint16, uint8), in func(uint16) uint8) *Port {
	return &Port{out: out, in: in}
}

func (p *Port) init() {
	p.out(regIntEnable, 0x00)
	p.out(regLineCtrl, 0x80) // DLAB on to set the baud divisor
	p.out(regData, 0x01)     // divisor low byte: 115200 baud
	p.out(regIntEnable, 0x00)
	p.out(regLineCtrl, 0x03) // 8 bits, no parity, 1 stop bit, DLAB off
	p.out(regFIFOCtrl, 0xC7) // enable FIFO, clear it, 14-byte threshold
	p.out(regModemCtrl, 0x0B)
}

func (p *Port) txReady() bool { return p.in(regLineStatus)&lineStatusTxEmpty != 0 }
func (p *Port) rxReady() bool { return p.in(regLineStatus)&lineStatusRxReady != 0 }

// PutByte blocks until the transmit FIFO has room, the same wait-on-status
// loop as uartPutc.
func (p *Port) PutByte(c byte) {
	for !p.txReady() {
	}
	p.out(regData, c)
}

// GetByte blocks until the receive FIFO has a byte.
func (p *Port) GetByte() byte {
	for !p.rxReady() {
	}
	return p.in(regData)
}

// TryGetByte is GetByte's non-blocking counterpart, used by read_char/tty's
// input-event poll which must never stall a syscall on an idle keyboard.
func (p *Port) TryGetByte() (byte, bool) {
	if !p.rxReady() {
		return 0, false
	}
	return p.in(regData), true
}

// ReadASCII and ReadChar let Port stand in directly for tty.Reader under
// QEMU's -nographic mode, where there is no PS/2 keyboard and the serial
// line is the only console input source.
func (p *Port) ReadASCII(buf []byte) int {
	n := 0
	for n < len(buf) {
		c, ok := p.TryGetByte()
		if !ok {
			break
		}
		buf[n] = c
		n++
	}
	return n
}

func (p *Port) ReadChar() (byte, bool) { return p.TryGetByte() }

// WriteBytes implements kdiag.Sink and internal/syscalls.Console: the
// serial port is both the boot-log sink and (until a real PS/2-backed tty
// exists) the console device.
func (p *Port) WriteBytes(b []byte) int {
	for _, c := range b {
		if c == '\n' {
			p.PutByte('\r')
		}
		p.PutByte(c)
	}
	return len(b)
}
