package syscalls

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/ksync"
)

const pipeCapacity = 4096

// pipeBuf is a blocking byte pipe: Write blocks while full, Read blocks
// while empty, both on the same wait queue since either side's progress can
// unblock the other (a write makes the buffer non-empty for the reader, a
// read makes it non-full for the writer).
type pipeBuf struct {
	mu     ksync.IrqMutex[pipeState]
	events *ksync.WaitQueue
	closed bool
}

type pipeState struct {
	buf        [pipeCapacity]byte
	start, len int
}

func newPipe() *pipeBuf {
	return &pipeBuf{mu: *ksync.NewIrqMutex(pipeState{}), events: ksync.NewWaitQueue()}
}

type pipeReadEnd struct{ p *pipeBuf }
type pipeWriteEnd struct{ p *pipeBuf }

func (r pipeReadEnd) Read(buf []byte) (int, errno.Errno) {
	p := r.p
	p.events.WaitEvent(func() bool {
		g := p.mu.Lock()
		ready := g.Get().len > 0 || p.closed
		g.Unlock()
		return ready
	})
	g := p.mu.Lock()
	s := g.Get()
	n := s.len
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] = s.buf[(s.start+i)%pipeCapacity]
	}
	s.start = (s.start + n) % pipeCapacity
	s.len -= n
	g.Unlock()
	p.events.WakeAll()
	return n, 0
}

func (r pipeReadEnd) Write([]byte) (int, errno.Errno)         { return 0, errno.EBADF }
func (r pipeReadEnd) Seek(int64, int) (int64, errno.Errno)    { return 0, errno.EINVAL }
func (r pipeReadEnd) Stat() (Stat, errno.Errno)                { return Stat{}, 0 }
func (r pipeReadEnd) Close()                                   { r.p.closeEnd() }

func (w pipeWriteEnd) Write(buf []byte) (int, errno.Errno) {
	p := w.p
	written := 0
	for written < len(buf) {
		p.events.WaitEvent(func() bool {
			g := p.mu.Lock()
			ready := g.Get().len < pipeCapacity || p.closed
			g.Unlock()
			return ready
		})
		g := p.mu.Lock()
		s := g.Get()
		if p.closed {
			g.Unlock()
			return written, errno.EBADF
		}
		room := pipeCapacity - s.len
		n := len(buf) - written
		if n > room {
			n = room
		}
		for i := 0; i < n; i++ {
			s.buf[(s.start+s.len+i)%pipeCapacity] = buf[written+i]
		}
		s.len += n
		written += n
		g.Unlock()
		p.events.WakeAll()
	}
	return written, 0
}

func (w pipeWriteEnd) Read([]byte) (int, errno.Errno)          { return 0, errno.EBADF }
func (w pipeWriteEnd) Seek(int64, int) (int64, errno.Errno)    { return 0, errno.EINVAL }
func (w pipeWriteEnd) Stat() (Stat, errno.Errno)                { return Stat{}, 0 }
func (w pipeWriteEnd) Close()                                   { w.p.closeEnd() }

func (p *pipeBuf) closeEnd() {
	g := p.mu.Lock()
	p.closed = true
	g.Unlock()
	p.events.WakeAll()
}

func init() {
	register(SysPipe, "pipe", handlePipe)
	register(SysPipe2, "pipe2", handlePipe2)
	register(SysPoll, "poll", handlePoll)
	register(SysSelect, "select", handleSelect)
}

func makePipePair(ctx *Context) (readFd, writeFd int, e errno.Errno) {
	p := newPipe()
	readFd, e = installFd(ctx.Task.ID, pipeReadEnd{p})
	if e != 0 {
		return -1, -1, e
	}
	writeFd, e = installFd(ctx.Task.ID, pipeWriteEnd{p})
	if e != 0 {
		closeFd(ctx.Task.ID, readFd)
		return -1, -1, e
	}
	return readFd, writeFd, 0
}

func writeFdPair(ctx *Context, ptr uintptr, readFd, writeFd int) errno.Errno {
	p, e := TryNewUserPtr(ptr)
	if e != 0 {
		return e
	}
	var pair [2]int32
	pair[0], pair[1] = int32(readFd), int32(writeFd)
	return CopyToUser(ctx.Task, p, structBytes(&pair))
}

func handlePipe(ctx *Context) (Disposition, uint64) {
	readFd, writeFd, e := makePipePair(ctx)
	if e != 0 {
		return fail(e)
	}
	if e := writeFdPair(ctx, uintptr(ctx.Args[0]), readFd, writeFd); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handlePipe2(ctx *Context) (Disposition, uint64) {
	// Args[1] flags (O_CLOEXEC/O_NONBLOCK) aren't modeled: exec does not
	// close descriptors, and there's no non-blocking pipe mode.
	return handlePipe(ctx)
}

// pollFD mirrors struct pollfd's layout for CopyFromUser/CopyToUser.
type pollFD struct {
	FD      int32
	Events  int16
	Revents int16
}

const pollIn = 0x0001

func handlePoll(ctx *Context) (Disposition, uint64) {
	p, e := TryNewUserPtr(uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	nfds := int(ctx.Args[1])
	entrySize := int(structSize[pollFD]())
	buf, e := CopyFromUser(ctx.Task, p, nfds*entrySize)
	if e != 0 {
		return fail(e)
	}

	ready := 0
	for i := 0; i < nfds; i++ {
		off := i * entrySize
		pf := bytesToStruct[pollFD](buf[off : off+entrySize])
		if pf.Events&pollIn != 0 {
			if _, e := lookupFd(ctx.Task.ID, int(pf.FD)); e == 0 {
				pf.Revents = pollIn
				ready++
			}
		}
		b := structBytes(&pf)
		copy(buf[off:off+entrySize], b)
	}
	if e := CopyToUser(ctx.Task, p, buf); e != 0 {
		return fail(e)
	}
	return ok(uint64(ready))
}

// handleSelect is an ABI-completeness stub, not a real select: translating
// select's fd_set bitmaps into poll's array form isn't attempted here,
// and this kernel's userland (cmd/shell, cmd/compositor) calls neither.
// It never blocks and never actually checks readiness — it reports
// Args[0] (the caller's fd count) straight back as the ready count, so any
// caller that does start depending on select for real multiplexing will
// busy-poll instead of blocking correctly.
func handleSelect(ctx *Context) (Disposition, uint64) {
	return ok(ctx.Args[0])
}
