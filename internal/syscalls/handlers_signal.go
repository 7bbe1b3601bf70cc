package syscalls

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/sched"
)

func init() {
	register(SysRtSigaction, "rt_sigaction", handleRtSigaction)
	register(SysRtSigprocmask, "rt_sigprocmask", handleRtSigprocmask)
	register(SysKill, "kill", handleKill)
	register(SysRtSigreturn, "rt_sigreturn", handleRtSigreturn)
}

// userSigAction is the ABI layout rt_sigaction copies to/from userland;
// sched.SigAction is the kernel-internal shape DeliverPendingSignal uses.
type userSigAction struct {
	Handler  uint64
	Mask     uint64
	Flags    uint64
	Restorer uint64
}

const saNodefer = 1 << 0

func handleRtSigaction(ctx *Context) (Disposition, uint64) {
	signum := int(ctx.Args[0])
	if signum <= 0 || signum >= sched.NSIG {
		return fail(errno.EINVAL)
	}
	if signum == sched.SIGKILL {
		return fail(errno.EINVAL)
	}

	newPtr := ctx.Args[1]
	oldPtr := ctx.Args[2]

	var old sched.SigAction
	if newPtr != 0 {
		p, e := TryNewUserPtr(uintptr(newPtr))
		if e != 0 {
			return fail(e)
		}
		buf, e := CopyFromUser(ctx.Task, p, int(structSize[userSigAction]()))
		if e != 0 {
			return fail(e)
		}
		ua := bytesToStruct[userSigAction](buf)
		old = ctx.Task.SetAction(signum, sched.SigAction{
			Handler:  uintptr(ua.Handler),
			Mask:     ua.Mask,
			NoDefer:  ua.Flags&saNodefer != 0,
			Restorer: uintptr(ua.Restorer),
		})
	}

	if oldPtr != 0 {
		p, e := TryNewUserPtr(uintptr(oldPtr))
		if e != 0 {
			return fail(e)
		}
		out := userSigAction{Handler: uint64(old.Handler), Mask: old.Mask, Restorer: uint64(old.Restorer)}
		if old.NoDefer {
			out.Flags |= saNodefer
		}
		if e := CopyToUser(ctx.Task, p, structBytes(&out)); e != 0 {
			return fail(e)
		}
	}
	return ok(0)
}

const (
	sigBlock = iota
	sigUnblock
	sigSetMask
)

func handleRtSigprocmask(ctx *Context) (Disposition, uint64) {
	how := ctx.Args[0]
	setPtr := ctx.Args[1]
	oldPtr := ctx.Args[2]

	old := ctx.Task.Blocked()
	if setPtr != 0 {
		p, e := TryNewUserPtr(uintptr(setPtr))
		if e != 0 {
			return fail(e)
		}
		buf, e := CopyFromUser(ctx.Task, p, 8)
		if e != 0 {
			return fail(e)
		}
		mask := bytesToStruct[uint64](buf)
		switch how {
		case sigBlock:
			ctx.Task.SetBlocked(old | mask)
		case sigUnblock:
			ctx.Task.SetBlocked(old &^ mask)
		case sigSetMask:
			ctx.Task.SetBlocked(mask)
		default:
			return fail(errno.EINVAL)
		}
	}

	if oldPtr != 0 {
		p, e := TryNewUserPtr(uintptr(oldPtr))
		if e != 0 {
			return fail(e)
		}
		if e := CopyToUser(ctx.Task, p, structBytes(&old)); e != 0 {
			return fail(e)
		}
	}
	return ok(0)
}

func handleKill(ctx *Context) (Disposition, uint64) {
	target := sched.Lookup(ctx.Args[0])
	if target == nil {
		return fail(errno.ESRCH)
	}
	signum := int(ctx.Args[1])
	if signum < 0 || signum >= sched.NSIG {
		return fail(errno.EINVAL)
	}
	sched.Kill(target, signum)
	return ok(0)
}

func handleRtSigreturn(ctx *Context) (Disposition, uint64) {
	sched.SigReturn(ctx.Task)
	*ctx.Frame = ctx.Task.Frame
	return noReturn()
}
