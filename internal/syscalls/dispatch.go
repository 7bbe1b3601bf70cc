// Package syscalls is the syscall dispatch layer: a static sysno->handler
// table, the SyscallContext handlers run against, user-pointer validation,
// and the handler families themselves (core, memory, process, signals,
// files, surfaces). Grounded on the teacher's own dispatch-by-table idiom
// (mazboot's syscall.go keys off a fixed vector number to pick a handler
// function rather than a switch chain) generalized from one RPi syscall
// vector to a full SYSCALL_TABLE indexed by sysno, entered here via the
// INT $0x80 gate whose stub is in trapentry_amd64.s, in place of the teacher's
// arm64 SVC instruction.
package syscalls

import "github.com/sloplabs/slopos/internal/errno"

// Sysno identifies a syscall by number, RAX on entry.
type Sysno uint64

const (
	SysYield Sysno = iota
	SysExit
	SysWrite
	SysRead
	SysReadChar
	SysSleepMs
	SysGetTimeMs
	SysSysInfo
	SysHalt
	SysReboot

	SysBrk
	SysMmap
	SysMunmap
	SysMprotect

	SysSpawnPath
	SysWaitpid
	SysTerminateTask
	SysExec
	SysFork
	SysClone
	SysFutex
	SysArchPrctl
	SysGetPID
	SysGetTID
	SysGetPPID
	SysSetPGID
	SysGetPGID
	SysSetSID

	SysRtSigaction
	SysRtSigprocmask
	SysKill
	SysRtSigreturn

	SysFsOpen
	SysFsClose
	SysFsRead
	SysFsWrite
	SysFsStat
	SysFsMkdir
	SysFsUnlink
	SysFsList
	SysDup
	SysDup2
	SysDup3
	SysFcntl
	SysLseek
	SysFstat
	SysPoll
	SysSelect
	SysPipe
	SysPipe2
	SysIoctl

	SysFbInfo
	SysFbFlip
	SysSurfaceCommit
	SysSurfaceAttach
	SysSurfaceFrame
	SysSurfaceDamage
	SysShmCreate
	SysShmMap
	SysShmUnmap
	SysShmDestroy
	SysShmAcquire
	SysShmRelease

	SysInputPoll
	SysInputPollBatch
	SysEnumerateWindows
	SysSetFocus
	SysSetWindowState

	SysSocket
	SysBind
	SysListen
	SysAccept
	SysConnect

	sysnoCount
)

// Handler is a syscall implementation bound to a SyscallContext; it returns
// a Disposition and, on Ok, the value to place in RAX.
type Handler func(ctx *Context) (Disposition, uint64)

// tableEntry is one SYSCALL_TABLE slot: a handler plus its debug name for
// tracing/panics.
type tableEntry struct {
	handler Handler
	name    string
}

// syscallTable is indexed by Sysno; unregistered slots have a nil handler.
var syscallTable [sysnoCount]tableEntry

func register(n Sysno, name string, h Handler) {
	syscallTable[n] = tableEntry{handler: h, name: name}
}

// Lookup returns sysno's handler and debug name, or (nil, "") if sysno
// names no registered syscall.
func Lookup(sysno Sysno) (Handler, string) {
	if uint64(sysno) >= uint64(sysnoCount) {
		return nil, ""
	}
	e := syscallTable[sysno]
	return e.handler, e.name
}

// Dispatch validates sysno, locates its handler, invokes it, and returns
// the value to place in RAX: the handler's result on Ok, -ENOSYS for an
// unregistered sysno, or the negated errno on Err. NoReturn handlers (exit,
// exec) have already diverted control flow by the time Dispatch would
// return, so its result is meaningless for them.
func Dispatch(ctx *Context, sysno Sysno, a0, a1, a2, a3, a4, a5 uint64) uint64 {
	ctx.Args = [6]uint64{a0, a1, a2, a3, a4, a5}

	h, _ := Lookup(sysno)
	if h == nil {
		return uint64(errno.ENOSYS.AsRAX())
	}

	disp, val := h(ctx)
	switch disp {
	case DispositionOk:
		return val
	case DispositionErr:
		return uint64(errno.Errno(val).AsRAX())
	default: // DispositionNoReturn
		return val
	}
}
