package syscalls

import (
	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/sched"
)

func init() {
	register(SysYield, "yield", handleYield)
	register(SysExit, "exit", handleExit)
	register(SysWrite, "write", handleWrite)
	register(SysRead, "read", handleRead)
	register(SysReadChar, "read_char", handleReadChar)
	register(SysSleepMs, "sleep_ms", handleSleepMs)
	register(SysGetTimeMs, "get_time_ms", handleGetTimeMs)
	register(SysSysInfo, "sys_info", handleSysInfo)
	register(SysHalt, "halt", handleHalt)
	register(SysReboot, "reboot", handleReboot)
}

func handleYield(ctx *Context) (Disposition, uint64) {
	sched.Yield()
	return ok(0)
}

// handleExit terminates the calling task with Args[0] as its low 8 exit
// bits and yields; it never returns to userland, matching exit's NoReturn
// disposition.
func handleExit(ctx *Context) (Disposition, uint64) {
	code := int32(ctx.Args[0] & 0xFF)
	sched.Terminate(ctx.Task, code, false, 0)
	sched.Yield()
	return noReturn()
}

// handleWrite is console-only (fd is ignored beyond validating it's stdout
// or stderr); general file descriptors go through fs_write.
func handleWrite(ctx *Context) (Disposition, uint64) {
	fd := ctx.Args[0]
	if fd != 1 && fd != 2 {
		return fail(errno.EBADF)
	}
	p, e := TryNewUserPtr(uintptr(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	n := int(ctx.Args[2])
	buf, e := CopyFromUser(ctx.Task, p, n)
	if e != 0 {
		return fail(e)
	}
	if console == nil {
		return fail(errno.EBADF)
	}
	return ok(uint64(console.WriteBytes(buf)))
}

func handleRead(ctx *Context) (Disposition, uint64) {
	fd := ctx.Args[0]
	if fd != 0 {
		return fail(errno.EBADF)
	}
	p, e := TryNewUserPtr(uintptr(ctx.Args[1]))
	if e != 0 {
		return fail(e)
	}
	n := int(ctx.Args[2])
	if console == nil {
		return fail(errno.EBADF)
	}
	buf := make([]byte, n)
	got := console.ReadBytes(buf)
	if e := CopyToUser(ctx.Task, p, buf[:got]); e != 0 {
		return fail(e)
	}
	return ok(uint64(got))
}

func handleReadChar(ctx *Context) (Disposition, uint64) {
	if console == nil {
		return fail(errno.EAGAIN)
	}
	c, got := console.ReadChar()
	if !got {
		return fail(errno.EAGAIN)
	}
	return ok(uint64(c))
}

func handleSleepMs(ctx *Context) (Disposition, uint64) {
	sched.SleepCurrentTask(ctx.Args[0])
	return ok(0)
}

func handleGetTimeMs(ctx *Context) (Disposition, uint64) {
	return ok(sched.GetTimeMs())
}

// SysInfo is the payload sys_info copies out: a minimal snapshot, not the
// full /proc-style surface a hosted OS would expose.
type SysInfo struct {
	UptimeMs   uint64
	NumTasks   uint64
	PageSize   uint32
	_          uint32
}

func handleSysInfo(ctx *Context) (Disposition, uint64) {
	p, e := TryNewUserPtr(uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	info := SysInfo{UptimeMs: sched.GetTimeMs(), PageSize: 4096}
	if e := CopyToUser(ctx.Task, p, structBytes(&info)); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleHalt(ctx *Context) (Disposition, uint64) {
	for {
		arch.Halt()
	}
}

const (
	keyboardControllerCmdPort = 0x64
	keyboardControllerReset   = 0xFE
)

func handleReboot(ctx *Context) (Disposition, uint64) {
	arch.OutB(keyboardControllerCmdPort, keyboardControllerReset)
	for {
		arch.Halt()
	}
}
