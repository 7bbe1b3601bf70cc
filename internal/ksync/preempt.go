package ksync

import "github.com/sloplabs/slopos/internal/arch"

// PreemptCounter is the per-CPU hook PreemptGuard increments/decrements. The
// PCR owns the actual counter and reschedule_pending flag; it registers
// itself here the same way the scheduler registers for WaitQueue, so that
// ksync (which the PCR package itself depends on) never imports pcr.
type PreemptCounter interface {
	Inc() (newCount uint32)
	Dec() (newCount uint32)
	ReschedulePending() bool
	ClearReschedulePending()
	TriggerYieldPoint()
}

var currentCPU func() PreemptCounter

// RegisterPreemptCounterSource installs the per-CPU lookup used by
// PreemptGuard. Called once from pcr.Init.
func RegisterPreemptCounterSource(f func() PreemptCounter) { currentCPU = f }

// PreemptGuard disables preemption for its lifetime by incrementing the
// current PCR's preempt_count. Dropping it (calling Release) decrements the
// counter and, if it reaches zero with reschedule_pending set, triggers a
// yield point immediately.
type PreemptGuard struct {
	pc PreemptCounter
}

func DisablePreempt() PreemptGuard {
	pc := currentCPU()
	pc.Inc()
	return PreemptGuard{pc: pc}
}

func (g PreemptGuard) Release() {
	if g.pc.Dec() == 0 && g.pc.ReschedulePending() {
		g.pc.ClearReschedulePending()
		g.pc.TriggerYieldPoint()
	}
}

// IrqPreemptGuard additionally disables interrupts for the duration, for
// code that must be both non-preemptible and non-interruptible (e.g. ready
// queue manipulation).
type IrqPreemptGuard struct {
	inner PreemptGuard
	flags uint64
}

func DisableIrqPreempt() IrqPreemptGuard {
	flags := arch.SaveFlagsCLI()
	return IrqPreemptGuard{inner: DisablePreempt(), flags: flags}
}

func (g IrqPreemptGuard) Release() {
	g.inner.Release()
	arch.RestoreFlags(g.flags)
}
