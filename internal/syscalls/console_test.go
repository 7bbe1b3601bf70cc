package syscalls

import (
	"testing"

	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/sched"
	"github.com/sloplabs/slopos/internal/vmm"
)

type fakeConsole struct {
	written []byte
	toRead  []byte
	char    byte
	hasChar bool
}

func (c *fakeConsole) WriteBytes(b []byte) int {
	c.written = append(c.written, b...)
	return len(b)
}

func (c *fakeConsole) ReadBytes(b []byte) int {
	n := copy(b, c.toRead)
	c.toRead = c.toRead[n:]
	return n
}

func (c *fakeConsole) ReadChar() (byte, bool) {
	if !c.hasChar {
		return 0, false
	}
	c.hasChar = false
	return c.char, true
}

func TestHandleWriteRejectsNonStdoutStderrFd(t *testing.T) {
	ctx := &Context{Task: &sched.Task{ID: 1}, Args: [6]uint64{0, 0, 0, 0, 0, 0}}
	disp, val := handleWrite(ctx)
	if disp != DispositionErr || errno.Errno(val) != errno.EBADF {
		t.Fatalf("handleWrite(fd=0) = (%v, %v), want (Err, EBADF)", disp, val)
	}
}

func TestHandleWriteForwardsBytesToConsole(t *testing.T) {
	c := &fakeConsole{}
	RegisterConsole(c)
	defer RegisterConsole(nil)

	buf := make([]byte, 32)
	task, addr := newMappedTask(buf, vmm.VMARead|vmm.VMAWrite)
	copy(buf, "hi")

	ctx := &Context{Task: task, Args: [6]uint64{1, uint64(addr), 2, 0, 0, 0}}
	disp, val := handleWrite(ctx)
	if disp != DispositionOk || val != 2 {
		t.Fatalf("handleWrite = (%v, %v), want (Ok, 2)", disp, val)
	}
	if string(c.written) != "hi" {
		t.Fatalf("console received %q, want %q", c.written, "hi")
	}
}

func TestHandleReadCopiesConsoleBytesToUser(t *testing.T) {
	c := &fakeConsole{toRead: []byte("yo")}
	RegisterConsole(c)
	defer RegisterConsole(nil)

	buf := make([]byte, 32)
	task, addr := newMappedTask(buf, vmm.VMARead|vmm.VMAWrite)

	ctx := &Context{Task: task, Args: [6]uint64{0, uint64(addr), 2, 0, 0, 0}}
	disp, val := handleRead(ctx)
	if disp != DispositionOk || val != 2 {
		t.Fatalf("handleRead = (%v, %v), want (Ok, 2)", disp, val)
	}
	if string(buf[:2]) != "yo" {
		t.Fatalf("user buffer = %q, want %q", buf[:2], "yo")
	}
}

func TestHandleReadCharReturnsEAGAINWhenNoneQueued(t *testing.T) {
	RegisterConsole(&fakeConsole{})
	defer RegisterConsole(nil)

	ctx := &Context{Task: &sched.Task{ID: 1}}
	disp, val := handleReadChar(ctx)
	if disp != DispositionErr || errno.Errno(val) != errno.EAGAIN {
		t.Fatalf("handleReadChar(none queued) = (%v, %v), want (Err, EAGAIN)", disp, val)
	}
}

func TestHandleReadCharReturnsQueuedByte(t *testing.T) {
	RegisterConsole(&fakeConsole{char: 'Q', hasChar: true})
	defer RegisterConsole(nil)

	ctx := &Context{Task: &sched.Task{ID: 1}}
	disp, val := handleReadChar(ctx)
	if disp != DispositionOk || val != uint64('Q') {
		t.Fatalf("handleReadChar = (%v, %v), want (Ok, 'Q')", disp, val)
	}
}

func TestRequireCompositorRejectsOrdinaryTask(t *testing.T) {
	ctx := &Context{Task: &sched.Task{ID: 1}}
	if e := requireCompositor(ctx); e != errno.EPERM {
		t.Fatalf("requireCompositor(ordinary) = %v, want EPERM", e)
	}
}

func TestRequireCompositorAllowsCompositorFlag(t *testing.T) {
	ctx := &Context{Task: &sched.Task{ID: 1, Flags: sched.TaskFlagCompositor}}
	if e := requireCompositor(ctx); e != 0 {
		t.Fatalf("requireCompositor(compositor) = %v, want 0", e)
	}
}

func TestRequireCompositorAllowsDisplayExclusiveFlag(t *testing.T) {
	ctx := &Context{Task: &sched.Task{ID: 1, Flags: sched.TaskFlagDisplayExclusive}}
	if e := requireCompositor(ctx); e != 0 {
		t.Fatalf("requireCompositor(display-exclusive) = %v, want 0", e)
	}
}
