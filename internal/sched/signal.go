package sched

import (
	"math/bits"
	"sync/atomic"
)

const NSIG = 64

const SIGKILL = 9

// SigAction mirrors struct sigaction's fields this kernel actually uses.
type SigAction struct {
	Handler  uintptr // 0 = SIG_DFL, 1 = SIG_IGN, else user handler address
	Mask     uint64  // additional signals blocked while the handler runs
	NoDefer  bool    // SA_NODEFER: don't add the delivered signal to Mask
	Restorer uintptr // user-mode sigreturn trampoline address
}

type signalState struct {
	actions [NSIG]SigAction
	pending atomic.Uint64
	blocked uint64 // only ever touched by the owning task, no lock needed
}

// SignalFrame is pushed onto the user stack before entering a handler and
// consumed by sigreturn to restore the interrupted context.
type SignalFrame struct {
	SavedFrame Regs
	SavedMask  uint64
	Signum     int32
	Restorer   uintptr
}

// Kill marks signum pending for t. SIGKILL bypasses the handler machinery
// entirely and terminates immediately, matching "SIGKILL is uncatchable".
func Kill(t *Task, signum int) {
	if signum == SIGKILL {
		Terminate(t, 128+int32(signum), true, signum)
		return
	}
	t.signalState.pending.Or(1 << uint(signum))
	if t.waiters != nil {
		t.waiters.WakeOne()
	}
}

// SetAction installs signum's disposition, returning the previous one.
func (t *Task) SetAction(signum int, a SigAction) SigAction {
	old := t.signalState.actions[signum]
	t.signalState.actions[signum] = a
	return old
}

// SetBlocked replaces the task's signal mask, returning the previous one.
func (t *Task) SetBlocked(mask uint64) uint64 {
	old := t.signalState.blocked
	t.signalState.blocked = mask
	return old
}

// Blocked returns the task's current signal mask without changing it.
func (t *Task) Blocked() uint64 { return t.signalState.blocked }

// DeliverPendingSignal runs on the path back to user mode: it picks the
// lowest-numbered deliverable signal (pending & ~blocked), and if it has a
// user handler, rewrites the trap frame to enter the handler with a
// SignalFrame pushed below the user stack pointer. Returns false if nothing
// was delivered.
func DeliverPendingSignal(t *Task) bool {
	deliverable := t.signalState.pending.Load() &^ t.signalState.blocked
	if deliverable == 0 {
		return false
	}
	signum := bits.TrailingZeros64(deliverable)
	t.signalState.pending.And(^(uint64(1) << uint(signum)))

	action := t.signalState.actions[signum]
	if action.Handler == 0 {
		// SIG_DFL: every signal this kernel delivers defaults to termination,
		// there being no stop/continue job-control support (§ non-goals).
		Terminate(t, 128+int32(signum), true, signum)
		return true
	}
	if action.Handler == 1 {
		return true // SIG_IGN
	}

	userSP := uintptr(t.Frame.RSP)
	userSP -= unsafe_sizeofSignalFrame
	userSP &^= 0xF

	frame := SignalFrame{
		SavedFrame: t.Frame,
		SavedMask:  t.signalState.blocked,
		Signum:     int32(signum),
		Restorer:   action.Restorer,
	}
	writeSignalFrame(userSP, &frame)

	newMask := t.signalState.blocked | action.Mask
	if !action.NoDefer {
		newMask |= 1 << uint(signum)
	}
	t.signalState.blocked = newMask

	t.Frame.RSP = uint64(userSP)
	t.Frame.RIP = uint64(action.Handler)
	t.Frame.RDI = uint64(signum)
	return true
}

// SigReturn restores the frame sigreturn's caller pushed, undoing
// DeliverPendingSignal's mutation of t.Frame and the blocked mask.
func SigReturn(t *Task) {
	userSP := uintptr(t.Frame.RSP)
	frame := readSignalFrame(userSP)
	t.Frame = frame.SavedFrame
	t.signalState.blocked = frame.SavedMask
}
