package syscalls

import "github.com/sloplabs/slopos/internal/errno"

func init() {
	register(SysInputPoll, "input_poll", handleInputPoll)
	register(SysInputPollBatch, "input_poll_batch", handleInputPollBatch)
	register(SysEnumerateWindows, "enumerate_windows", handleEnumerateWindows)
	register(SysSetFocus, "set_focus", handleSetFocus)
	register(SysSetWindowState, "set_window_state", handleSetWindowState)
}

// Input/window syscalls are all compositor-gated per §4.H: ordinary
// processes draw into their own shm surface and never see raw input or
// other windows' geometry.

func handleInputPoll(ctx *Context) (Disposition, uint64) {
	if e := requireCompositor(ctx); e != 0 {
		return fail(e)
	}
	if input == nil {
		return fail(errno.ENOSYS)
	}
	ev, has := input.Poll()
	if !has {
		return fail(errno.EAGAIN)
	}
	p, e := TryNewUserPtr(uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	if e := CopyToUser(ctx.Task, p, structBytes(&ev)); e != 0 {
		return fail(e)
	}
	return ok(1)
}

func handleInputPollBatch(ctx *Context) (Disposition, uint64) {
	if e := requireCompositor(ctx); e != 0 {
		return fail(e)
	}
	if input == nil {
		return fail(errno.ENOSYS)
	}
	max := int(ctx.Args[1])
	events := input.PollBatch(max)
	p, e := TryNewUserPtr(uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	entrySize := int(structSize[InputEvent]())
	buf := make([]byte, len(events)*entrySize)
	for i, ev := range events {
		copy(buf[i*entrySize:], structBytes(&ev))
	}
	if e := CopyToUser(ctx.Task, p, buf); e != 0 {
		return fail(e)
	}
	return ok(uint64(len(events)))
}

func handleEnumerateWindows(ctx *Context) (Disposition, uint64) {
	if e := requireCompositor(ctx); e != 0 {
		return fail(e)
	}
	if input == nil {
		return fail(errno.ENOSYS)
	}
	wins := input.EnumerateWindows()
	p, e := TryNewUserPtr(uintptr(ctx.Args[0]))
	if e != 0 {
		return fail(e)
	}
	bufCap := int(ctx.Args[1])
	entrySize := int(structSize[WindowInfo]())
	n := len(wins)
	if n*entrySize > bufCap {
		n = bufCap / entrySize
	}
	buf := make([]byte, n*entrySize)
	for i := 0; i < n; i++ {
		copy(buf[i*entrySize:], structBytes(&wins[i]))
	}
	if e := CopyToUser(ctx.Task, p, buf); e != 0 {
		return fail(e)
	}
	return ok(uint64(n))
}

func handleSetFocus(ctx *Context) (Disposition, uint64) {
	if e := requireCompositor(ctx); e != 0 {
		return fail(e)
	}
	if input == nil {
		return fail(errno.ENOSYS)
	}
	if e := input.SetFocus(uint32(ctx.Args[0])); e != 0 {
		return fail(e)
	}
	return ok(0)
}

func handleSetWindowState(ctx *Context) (Disposition, uint64) {
	if e := requireCompositor(ctx); e != 0 {
		return fail(e)
	}
	if input == nil {
		return fail(errno.ENOSYS)
	}
	windowID := uint32(ctx.Args[0])
	x, y := int32(ctx.Args[1]), int32(ctx.Args[2])
	w, h := uint32(ctx.Args[3]), uint32(ctx.Args[4])
	if e := input.SetWindowState(windowID, x, y, w, h); e != 0 {
		return fail(e)
	}
	return ok(0)
}
