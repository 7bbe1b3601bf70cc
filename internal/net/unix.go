// Package net is the AF_UNIX-only socket stub named in SPEC_FULL.md's
// supplemented features: enough to let two tasks rendezvous on a path and
// exchange bytes over a connected stream, with no IP stack underneath. It's
// built the same way internal/syscalls built pipes — a fixed-capacity byte
// ring per direction guarded by one ksync.IrqMutex, blocking consumers
// parked on a ksync.WaitQueue — since a connected AF_UNIX stream socket is,
// underneath, exactly two pipes wired back to back.
package net

import "github.com/sloplabs/slopos/internal/ksync"

// Error is net's own small result enum; internal/syscalls maps it onto the
// errno taxonomy at the syscall boundary, the same split vfs's Error enum
// keeps from the fs layer.
type Error int

const (
	ErrNone Error = iota
	ErrAddrInUse
	ErrNoSuchListener
	ErrConnectionRefused
	ErrClosed
	ErrBacklogFull
)

const (
	ringCapacity    = 4096
	backlogCapacity = 16
)

type ringState struct {
	buf         [ringCapacity]byte
	start, size int
	closed      bool
}

// half is one direction of a duplex connection: identical in shape to
// internal/syscalls's pipe byte ring.
type half struct {
	mu     ksync.IrqMutex[ringState]
	events *ksync.WaitQueue
}

func newHalf() *half {
	return &half{mu: *ksync.NewIrqMutex(ringState{}), events: ksync.NewWaitQueue()}
}

func (h *half) read(buf []byte) int {
	h.events.WaitEvent(func() bool {
		g := h.mu.Lock()
		defer g.Unlock()
		s := g.Get()
		return s.size > 0 || s.closed
	})
	g := h.mu.Lock()
	s := g.Get()
	n := s.size
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] = s.buf[(s.start+i)%ringCapacity]
	}
	s.start = (s.start + n) % ringCapacity
	s.size -= n
	g.Unlock()
	h.events.WakeAll()
	return n
}

func (h *half) write(buf []byte) int {
	written := 0
	for written < len(buf) {
		h.events.WaitEvent(func() bool {
			g := h.mu.Lock()
			defer g.Unlock()
			s := g.Get()
			return s.size < ringCapacity || s.closed
		})
		g := h.mu.Lock()
		s := g.Get()
		if s.closed {
			g.Unlock()
			return written
		}
		room := ringCapacity - s.size
		n := len(buf) - written
		if n > room {
			n = room
		}
		for i := 0; i < n; i++ {
			s.buf[(s.start+s.size+i)%ringCapacity] = buf[written+i]
		}
		s.size += n
		written += n
		g.Unlock()
		h.events.WakeAll()
	}
	return written
}

func (h *half) close() {
	g := h.mu.Lock()
	g.Get().closed = true
	g.Unlock()
	h.events.WakeAll()
}

// Conn is one connected endpoint: reads drain in, writes fill out — the two
// halves of a Listener.Accept/Connect pair point at each other crosswise.
type Conn struct {
	in, out *half
}

func newConnPair() (*Conn, *Conn) {
	a, b := newHalf(), newHalf()
	return &Conn{in: a, out: b}, &Conn{in: b, out: a}
}

func (c *Conn) Read(buf []byte) int  { return c.in.read(buf) }
func (c *Conn) Write(buf []byte) int { return c.out.write(buf) }
func (c *Conn) Close() {
	c.in.close()
	c.out.close()
}

type listenerState struct {
	pending []*Conn
	closed  bool
}

// Listener is a bound AF_UNIX path waiting for connections.
type Listener struct {
	path   string
	mu     ksync.IrqMutex[listenerState]
	events *ksync.WaitQueue
}

var registry ksync.IrqMutex[map[string]*Listener]

func init() {
	registry = *ksync.NewIrqMutex(make(map[string]*Listener))
}

// Bind registers path as a listening socket; fails with ErrAddrInUse if
// another listener already holds it.
func Bind(path string) (*Listener, Error) {
	g := registry.Lock()
	defer g.Unlock()
	m := *g.Get()
	if _, exists := m[path]; exists {
		return nil, ErrAddrInUse
	}
	l := &Listener{path: path, mu: *ksync.NewIrqMutex(listenerState{}), events: ksync.NewWaitQueue()}
	m[path] = l
	return l, ErrNone
}

// Unbind removes path from the registry, refusing further Connects; any
// connections already accepted are unaffected.
func Unbind(path string) {
	g := registry.Lock()
	m := *g.Get()
	if l, ok := m[path]; ok {
		lg := l.mu.Lock()
		lg.Get().closed = true
		lg.Unlock()
		l.events.WakeAll()
		delete(m, path)
	}
	g.Unlock()
}

// Connect looks path up in the registry and queues a new connection on its
// backlog, returning the caller's end of the pair. Blocks only long enough
// to acquire the listener's lock, never waiting for Accept — a connected
// AF_UNIX socket's write buffer absorbs bytes sent before the peer calls
// Accept, exactly like a real listen(2) backlog.
func Connect(path string) (*Conn, Error) {
	g := registry.Lock()
	m := *g.Get()
	l, ok := m[path]
	g.Unlock()
	if !ok {
		return nil, ErrNoSuchListener
	}

	caller, server := newConnPair()
	lg := l.mu.Lock()
	s := lg.Get()
	if s.closed {
		lg.Unlock()
		return nil, ErrConnectionRefused
	}
	if len(s.pending) >= backlogCapacity {
		lg.Unlock()
		return nil, ErrBacklogFull
	}
	s.pending = append(s.pending, server)
	lg.Unlock()
	l.events.WakeAll()
	return caller, ErrNone
}

// Accept blocks until a connection is queued on l's backlog and returns the
// server-side Conn.
func (l *Listener) Accept() (*Conn, Error) {
	for {
		g := l.mu.Lock()
		s := g.Get()
		if len(s.pending) > 0 {
			c := s.pending[0]
			s.pending = s.pending[1:]
			g.Unlock()
			return c, ErrNone
		}
		if s.closed {
			g.Unlock()
			return nil, ErrClosed
		}
		g.Unlock()
		l.events.WaitEvent(func() bool {
			g := l.mu.Lock()
			defer g.Unlock()
			s := g.Get()
			return len(s.pending) > 0 || s.closed
		})
	}
}
