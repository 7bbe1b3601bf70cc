package sched

import "reflect"

// trapReturnEntry is what a forked/cloned task's first context switch RETs
// into (see PrepareEntry/initialRSP): the task stack arch.SwitchContext
// pops into is built so its "return address" is this function, the same
// trick the Go runtime itself uses to land a finished goroutine on goexit.
// Instead of falling through to ordinary Go code, it loads the task's
// saved trap frame and IRETQs into it, so a forked/cloned task resumes
// exactly where its parent trapped rather than starting fresh.
//
//go:nosplit
func trapReturnEntry() {
	t := currentTask()
	if t == nil {
		panic("sched: trapReturnEntry with no current task")
	}
	iretqWithFrame(&t.Frame)
}

// iretqWithFrame loads every register from f and IRETQs into its
// RIP/CS/RFLAGS/RSP/SS; implemented in trapreturn_amd64.s next to
// SwitchContext's own stack-convention assembly in internal/arch. Never
// returns.
//
//go:nosplit
func iretqWithFrame(f *Regs)

// TrapReturnEntryAddr returns trapReturnEntry's address, for boot to pass to
// RegisterTrapReturnTrampoline once. The teacher's own goroutine bootstrap
// code (goroutine.go's "real Go uses abi.FuncPCABI0") names the same
// problem; reflect.ValueOf(f).Pointer() is the portable substitute available
// outside the compiler's own internal/abi package.
func TrapReturnEntryAddr() uintptr {
	return reflect.ValueOf(trapReturnEntry).Pointer()
}
