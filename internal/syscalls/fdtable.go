package syscalls

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/ksync"
)

const maxFdsPerTask = 256

// fdEntry is one slot of a process's fd table. closeOnExec is never set:
// fcntl(F_SETFD) only checks that the fd exists, and exec does not close
// any descriptors.
type fdEntry struct {
	handle      FileHandle
	closeOnExec bool
}

type fdTable struct {
	mu      ksync.IrqMutex[[maxFdsPerTask]fdEntry]
	present [maxFdsPerTask]bool
}

var tables ksync.IrqMutex[map[uint64]*fdTable]

func init() {
	tables = *ksync.NewIrqMutex(make(map[uint64]*fdTable))
}

func tableFor(taskID uint64) *fdTable {
	g := tables.Lock()
	defer g.Unlock()
	m := *g.Get()
	t, ok := m[taskID]
	if !ok {
		t = &fdTable{mu: *ksync.NewIrqMutex([maxFdsPerTask]fdEntry{})}
		m[taskID] = t
	}
	return t
}

// installFd finds the lowest free descriptor for taskID and installs h,
// standard POSIX "lowest available fd" semantics.
func installFd(taskID uint64, h FileHandle) (int, errno.Errno) {
	t := tableFor(taskID)
	g := t.mu.Lock()
	defer g.Unlock()
	for i := 3; i < maxFdsPerTask; i++ { // 0,1,2 reserved for console stdio
		if !t.present[i] {
			t.present[i] = true
			g.Get()[i] = fdEntry{handle: h}
			return i, 0
		}
	}
	return -1, errno.EBADF
}

func lookupFd(taskID uint64, fd int) (FileHandle, errno.Errno) {
	if fd < 0 || fd >= maxFdsPerTask {
		return nil, errno.EBADF
	}
	t := tableFor(taskID)
	g := t.mu.Lock()
	defer g.Unlock()
	if !t.present[fd] {
		return nil, errno.EBADF
	}
	return g.Get()[fd].handle, 0
}

func closeFd(taskID uint64, fd int) errno.Errno {
	if fd < 0 || fd >= maxFdsPerTask {
		return errno.EBADF
	}
	t := tableFor(taskID)
	g := t.mu.Lock()
	if !t.present[fd] {
		g.Unlock()
		return errno.EBADF
	}
	h := g.Get()[fd].handle
	t.present[fd] = false
	g.Get()[fd] = fdEntry{}
	g.Unlock()
	h.Close()
	return 0
}

func dupFd(taskID uint64, oldFd, wantFd int) (int, errno.Errno) {
	h, e := lookupFd(taskID, oldFd)
	if e != 0 {
		return -1, e
	}
	t := tableFor(taskID)
	g := t.mu.Lock()
	defer g.Unlock()
	if wantFd < 0 {
		for i := 3; i < maxFdsPerTask; i++ {
			if !t.present[i] {
				wantFd = i
				break
			}
		}
		if wantFd < 0 {
			return -1, errno.EBADF
		}
	} else if wantFd >= maxFdsPerTask {
		return -1, errno.EBADF
	}
	t.present[wantFd] = true
	g.Get()[wantFd] = fdEntry{handle: h}
	return wantFd, 0
}
