package syscalls

import (
	"github.com/sloplabs/slopos/internal/errno"
	netpkg "github.com/sloplabs/slopos/internal/net"
)

// AF_UNIX/SOCK_STREAM are the only family/type this kernel accepts; every
// other value fails with the errno taxonomy's dedicated socket entries
// (§7 already budgets EAFNOSUPPORT/EPROTONOSUPPORT for exactly this).
const (
	afUnix     = 1
	sockStream = 1
)

func init() {
	register(SysSocket, "socket", handleSocket)
	register(SysBind, "bind", handleBind)
	register(SysListen, "listen", handleListen)
	register(SysAccept, "accept", handleAccept)
	register(SysConnect, "connect", handleConnect)
}

type socketState int

const (
	socketNew socketState = iota
	socketBound
	socketListening
	socketConnected
)

// socketHandle is the FileHandle behind a socket fd at every stage of its
// life: unbound, bound-and-listening, or connected. A single type covers
// all three (rather than one per state) because bind/listen/connect mutate
// the same fd in place, exactly like real socket(2)/connect(2)/bind(2).
type socketHandle struct {
	state    socketState
	path     string
	listener *netpkg.Listener
	conn     *netpkg.Conn
}

func (s *socketHandle) Read(buf []byte) (int, errno.Errno) {
	if s.state != socketConnected {
		return 0, errno.ENOTSOCK
	}
	return s.conn.Read(buf), 0
}

func (s *socketHandle) Write(buf []byte) (int, errno.Errno) {
	if s.state != socketConnected {
		return 0, errno.ENOTSOCK
	}
	return s.conn.Write(buf), 0
}

func (s *socketHandle) Seek(int64, int) (int64, errno.Errno) { return 0, errno.EINVAL }
func (s *socketHandle) Stat() (Stat, errno.Errno)             { return Stat{}, 0 }

func (s *socketHandle) Close() {
	switch s.state {
	case socketBound, socketListening:
		netpkg.Unbind(s.path)
	case socketConnected:
		s.conn.Close()
	}
}

// netErrToErrno maps net.Error onto the errno taxonomy. The taxonomy has no
// ECONNREFUSED entry, so both "nobody's listening" and "the listener
// refused" land on EDESTADDRREQ, the closest addressing-family error §7
// already budgets for AF_UNIX.
func netErrToErrno(e netpkg.Error) errno.Errno {
	switch e {
	case netpkg.ErrAddrInUse:
		return errno.EEXIST
	case netpkg.ErrNoSuchListener, netpkg.ErrConnectionRefused:
		return errno.EDESTADDRREQ
	case netpkg.ErrBacklogFull:
		return errno.EAGAIN
	case netpkg.ErrClosed:
		return errno.EINVAL
	}
	return 0
}

func lookupSocket(ctx *Context, fd int) (*socketHandle, errno.Errno) {
	fh, e := lookupFd(ctx.Task.ID, fd)
	if e != 0 {
		return nil, e
	}
	sh, ok := fh.(*socketHandle)
	if !ok {
		return nil, errno.ENOTSOCK
	}
	return sh, 0
}

func handleSocket(ctx *Context) (Disposition, uint64) {
	if ctx.Args[0] != afUnix {
		return fail(errno.EAFNOSUPPORT)
	}
	if ctx.Args[1] != sockStream {
		return fail(errno.EPROTONOSUPPORT)
	}
	fd, e := installFd(ctx.Task.ID, &socketHandle{state: socketNew})
	if e != 0 {
		return fail(e)
	}
	return ok(uint64(fd))
}

func handleBind(ctx *Context) (Disposition, uint64) {
	h, e := lookupSocket(ctx, int(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	if h.state != socketNew {
		return fail(errno.EINVAL)
	}
	path, e := readUserCString(ctx.Task, uintptr(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	l, nerr := netpkg.Bind(path)
	if nerr != netpkg.ErrNone {
		return fail(netErrToErrno(nerr))
	}
	h.state = socketBound
	h.path = path
	h.listener = l
	return ok(0)
}

func handleListen(ctx *Context) (Disposition, uint64) {
	h, e := lookupSocket(ctx, int(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	if h.state != socketBound {
		return fail(errno.EINVAL)
	}
	h.state = socketListening
	return ok(0)
}

func handleAccept(ctx *Context) (Disposition, uint64) {
	h, e := lookupSocket(ctx, int(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	if h.state != socketListening {
		return fail(errno.EINVAL)
	}
	c, nerr := h.listener.Accept()
	if nerr != netpkg.ErrNone {
		return fail(netErrToErrno(nerr))
	}
	fd, e := installFd(ctx.Task.ID, &socketHandle{state: socketConnected, conn: c})
	if e != 0 {
		return fail(e)
	}
	return ok(uint64(fd))
}

func handleConnect(ctx *Context) (Disposition, uint64) {
	h, e := lookupSocket(ctx, int(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	if h.state != socketNew {
		return fail(errno.EINVAL)
	}
	path, e := readUserCString(ctx.Task, uintptr(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	c, nerr := netpkg.Connect(path)
	if nerr != netpkg.ErrNone {
		return fail(netErrToErrno(nerr))
	}
	h.state = socketConnected
	h.conn = c
	return ok(0)
}
