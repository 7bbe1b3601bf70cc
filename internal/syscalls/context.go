package syscalls

import "github.com/sloplabs/slopos/internal/sched"

// Context binds one syscall invocation to the task that made it and the
// trap frame it entered through, mirroring SyscallContext's (current_task,
// frame) pair.
type Context struct {
	Task  *sched.Task
	Frame *sched.Regs
	Args  [6]uint64
}

// NewContext builds a Context for the currently running task, called once
// from the common syscall entry trampoline per trap.
func NewContext(frame *sched.Regs) *Context {
	return &Context{Task: sched.Current(), Frame: frame}
}
