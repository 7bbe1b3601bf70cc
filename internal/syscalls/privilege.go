package syscalls

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/sched"
)

// requireCompositor fails with EPERM unless ctx.Task carries the compositor
// or display-exclusive flag, gating fb_flip/surface/shm/input/window
// syscalls to the one task responsible for drawing.
func requireCompositor(ctx *Context) errno.Errno {
	if ctx.Task == nil {
		return errno.EPERM
	}
	if ctx.Task.Flags&(sched.TaskFlagCompositor|sched.TaskFlagDisplayExclusive) == 0 {
		return errno.EPERM
	}
	return 0
}
