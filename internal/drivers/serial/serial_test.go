package serial

import "testing"

// fakeUART models a 16550's data/line-status registers in memory, enough to
// drive Port's busy-wait loops without real I/O ports.
type fakeUART struct {
	regs          map[uint16]uint8
	rxQueue       []byte
	txLog         []byte
}

func newFakeUART() *fakeUART {
	return &fakeUART{regs: map[uint16]uint8{regLineStatus: lineStatusTxEmpty}}
}

func (f *fakeUART) out(port uint16, v uint8) {
	if port == regData {
		f.txLog = append(f.txLog, v)
		return
	}
	f.regs[port] = v
}

func (f *fakeUART) in(port uint16) uint8 {
	if port == regLineStatus {
		status := uint8(lineStatusTxEmpty)
		if len(f.rxQueue) > 0 {
			status |= lineStatusRxReady
		}
		return status
	}
	if port == regData && len(f.rxQueue) > 0 {
		c := f.rxQueue[0]
		f.rxQueue = f.rxQueue[1:]
		return c
	}
	return f.regs[port]
}

func TestPutBytePlacesByteOnDataRegister(t *testing.T) {
	f := newFakeUART()
	p := newWithIO(f.out, f.in)
	p.PutByte('A')
	if len(f.txLog) != 1 || f.txLog[0] != 'A' {
		t.Fatalf("txLog = %v, want [A]", f.txLog)
	}
}

func TestWriteBytesTranslatesNewlineToCRLF(t *testing.T) {
	f := newFakeUART()
	p := newWithIO(f.out, f.in)
	p.WriteBytes([]byte("hi\n"))
	if string(f.txLog) != "hi\r\n" {
		t.Fatalf("txLog = %q, want %q", f.txLog, "hi\r\n")
	}
}

func TestTryGetByteReturnsFalseWhenEmpty(t *testing.T) {
	f := newFakeUART()
	p := newWithIO(f.out, f.in)
	if _, ok := p.TryGetByte(); ok {
		t.Fatal("TryGetByte on empty rx queue returned ok=true")
	}
}

func TestTryGetByteDrainsQueuedByte(t *testing.T) {
	f := newFakeUART()
	f.rxQueue = []byte{'Z'}
	p := newWithIO(f.out, f.in)
	c, ok := p.TryGetByte()
	if !ok || c != 'Z' {
		t.Fatalf("TryGetByte = (%q, %v), want ('Z', true)", c, ok)
	}
	if _, ok := p.TryGetByte(); ok {
		t.Fatal("TryGetByte after drain returned ok=true")
	}
}
