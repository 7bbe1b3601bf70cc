package syscalls

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/pmm"
	"github.com/sloplabs/slopos/internal/sched"
)

func init() {
	register(SysWaitpid, "waitpid", handleWaitpid)
	register(SysTerminateTask, "terminate_task", handleTerminateTask)
	register(SysFork, "fork", handleFork)
	register(SysClone, "clone", handleClone)
	register(SysFutex, "futex", handleFutex)
	register(SysArchPrctl, "arch_prctl", handleArchPrctl)
	register(SysGetPID, "getpid", handleGetPID)
	register(SysGetTID, "gettid", handleGetTID)
	register(SysGetPPID, "getppid", handleGetPPID)
	register(SysSetPGID, "setpgid", handleSetPGID)
	register(SysGetPGID, "getpgid", handleGetPGID)
	register(SysSetSID, "setsid", handleSetSID)
	register(SysSpawnPath, "spawn_path", handleSpawnPath)
	register(SysExec, "exec", handleExec)
}

// handleFork clones the calling task via sched.ForkTask and schedules the
// child; returns the child's id to the parent (RAX=0 is already baked into
// the child's copied trap frame by ForkTask).
func handleFork(ctx *Context) (Disposition, uint64) {
	child, err := sched.ForkTask(pmm.Global(), ctx.Task)
	if err != nil {
		return fail(errno.ENOMEM)
	}
	sched.ScheduleTask(child)
	return ok(child.ID)
}

const (
	cloneVM       = 1 << 8
	cloneFiles    = 1 << 9
	cloneSighand  = 1 << 10
	cloneSetTLS   = 1 << 19
)

func handleClone(ctx *Context) (Disposition, uint64) {
	var flags sched.CloneFlags
	raw := ctx.Args[0]
	if raw&cloneVM != 0 {
		flags |= sched.CloneVM
	}
	if raw&cloneFiles != 0 {
		flags |= sched.CloneFiles
	}
	if raw&cloneSighand != 0 {
		flags |= sched.CloneSighand
	}
	if raw&cloneSetTLS != 0 {
		flags |= sched.CloneSetTLS
	}
	childStack := uintptr(ctx.Args[1])
	tls := ctx.Args[2]

	child, err := sched.CloneTask(pmm.Global(), ctx.Task, flags, childStack, tls)
	if err != nil {
		return fail(errno.ENOMEM)
	}
	sched.ScheduleTask(child)
	return ok(child.ID)
}

// handleWaitpid blocks (or polls, under WNOHANG in Args[1]) until the named
// child exits, returning its exit code packed the way wait(2) does: low
// byte signal number if Signaled, else exit code << 8.
func handleWaitpid(ctx *Context) (Disposition, uint64) {
	const wnohang = 1
	id := ctx.Args[0]
	nohang := ctx.Args[1]&wnohang != 0

	rec, found := sched.WaitPID(id, nohang)
	if !found {
		if nohang {
			return ok(0)
		}
		return fail(errno.ESRCH)
	}
	status := uint64(uint32(rec.ExitCode)) << 8
	if rec.Signaled {
		status = uint64(rec.Signal) & 0x7F
	}
	return ok(status)
}

// handleTerminateTask is compositor-gated: it lets the compositor kill a
// misbehaving client task directly rather than via signals.
func handleTerminateTask(ctx *Context) (Disposition, uint64) {
	if e := requireCompositor(ctx); e != 0 {
		return fail(e)
	}
	target := sched.Lookup(ctx.Args[0])
	if target == nil {
		return fail(errno.ESRCH)
	}
	sched.Terminate(target, 128+int32(sched.SIGKILL), true, sched.SIGKILL)
	return ok(0)
}

func handleFutex(ctx *Context) (Disposition, uint64) {
	const (
		futexWait = 0
		futexWake = 1
	)
	op := ctx.Args[0]
	addr := (*uint32)(userPtrUnsafe(uintptr(ctx.Args[1])))
	switch op {
	case futexWait:
		expected := uint32(ctx.Args[2])
		timeoutMs := ctx.Args[3]
		if e := sched.FutexWait(addr, expected, timeoutMs); e != 0 {
			return fail(e)
		}
		return ok(0)
	case futexWake:
		n := int(ctx.Args[2])
		return ok(uint64(sched.FutexWake(addr, n)))
	default:
		return fail(errno.EINVAL)
	}
}

const (
	archSetFS = 0x1002
	archGetFS = 0x1003
)

func handleArchPrctl(ctx *Context) (Disposition, uint64) {
	switch ctx.Args[0] {
	case archSetFS:
		ctx.Task.Frame.FSBase = ctx.Args[1]
		return ok(0)
	case archGetFS:
		p, e := TryNewUserPtr(uintptr(ctx.Args[1]))
		if e != 0 {
			return fail(e)
		}
		v := ctx.Task.Frame.FSBase
		if e := CopyToUser(ctx.Task, p, structBytes(&v)); e != 0 {
			return fail(e)
		}
		return ok(0)
	default:
		return fail(errno.EINVAL)
	}
}

func handleGetPID(ctx *Context) (Disposition, uint64)  { return ok(ctx.Task.PID) }
func handleGetTID(ctx *Context) (Disposition, uint64)  { return ok(ctx.Task.TID) }
func handleGetPPID(ctx *Context) (Disposition, uint64) { return ok(ctx.Task.ParentID) }

func handleSetPGID(ctx *Context) (Disposition, uint64) {
	target := ctx.Task
	if id := ctx.Args[0]; id != 0 {
		if t := sched.Lookup(id); t != nil {
			target = t
		} else {
			return fail(errno.ESRCH)
		}
	}
	pgid := ctx.Args[1]
	if pgid == 0 {
		pgid = target.ID
	}
	target.PGID = pgid
	return ok(0)
}

func handleGetPGID(ctx *Context) (Disposition, uint64) {
	target := ctx.Task
	if id := ctx.Args[0]; id != 0 {
		if t := sched.Lookup(id); t != nil {
			target = t
		} else {
			return fail(errno.ESRCH)
		}
	}
	return ok(target.PGID)
}

func handleSetSID(ctx *Context) (Disposition, uint64) {
	ctx.Task.SID = ctx.Task.ID
	ctx.Task.PGID = ctx.Task.ID
	return ok(ctx.Task.SID)
}

// handleSpawnPath and handleExec depend on a loader internal/vfs+an ELF
// loader supply; both are registered hooks for the same dependency-inversion
// reason as Console and FileSystem, since syscalls can't import vfs (vfs's
// own error taxonomy maps back onto errno, creating a cycle the other way).
var execHook func(t *sched.Task, path string, argv []string) errno.Errno

// RegisterExec installs the path-to-running-task loader, wired by
// internal/boot once internal/vfs exists.
func RegisterExec(h func(t *sched.Task, path string, argv []string) errno.Errno) {
	execHook = h
}

func handleSpawnPath(ctx *Context) (Disposition, uint64) {
	path, e := readUserCString(ctx.Task, uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	child, err := sched.ForkTask(pmm.Global(), ctx.Task)
	if err != nil {
		return fail(errno.ENOMEM)
	}
	if execHook == nil {
		sched.Terminate(child, 128+int32(errno.ENOSYS), false, 0)
		return fail(errno.ENOSYS)
	}
	if e := execHook(child, path, nil); e != 0 {
		sched.Terminate(child, 128+int32(e), false, 0)
		return fail(e)
	}
	sched.ScheduleTask(child)
	return ok(child.ID)
}

func handleExec(ctx *Context) (Disposition, uint64) {
	if execHook == nil {
		return fail(errno.ENOSYS)
	}
	path, e := readUserCString(ctx.Task, uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	if e := execHook(ctx.Task, path, nil); e != 0 {
		return fail(e)
	}
	return noReturn()
}
