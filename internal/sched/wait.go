package sched

import "github.com/sloplabs/slopos/internal/ksync"

var exitRecords ksync.IrqMutex[map[uint64]ExitRecord]

func init() {
	exitRecords = *ksync.NewIrqMutex(make(map[uint64]ExitRecord))
}

// Terminate marks t Zombie, records its exit status, and wakes anyone
// waiting on it. The task's queues/resources are reclaimed at the next
// schedule point (Reap), not inline here, since Terminate can run from
// signal delivery while t is the task currently executing.
func Terminate(t *Task, exitCode int32, signaled bool, signal int) {
	t.exitCode = exitCode
	t.exitSignal = signal
	t.SetState(StateZombie)

	g := exitRecords.Lock()
	(*g.Get())[t.ID] = ExitRecord{TaskID: t.ID, ExitCode: exitCode, Signaled: signaled, Signal: signal}
	g.Unlock()

	if t.waiters != nil {
		t.waiters.WakeAll()
	}
}

// WaitPID blocks (unless nohang is set) until id's exit record exists, then
// consumes and returns it. id must name a task that was this caller's child;
// the syscalls layer enforces that relationship, not this package.
func WaitPID(id uint64, nohang bool) (ExitRecord, bool) {
	check := func() (ExitRecord, bool) {
		g := exitRecords.Lock()
		defer g.Unlock()
		rec, ok := (*g.Get())[id]
		if ok {
			delete(*g.Get(), id)
		}
		return rec, ok
	}

	if rec, ok := check(); ok {
		return rec, true
	}
	if nohang {
		return ExitRecord{}, false
	}
	t := lookupTask(id)
	if t == nil {
		return ExitRecord{}, false
	}
	t.waiters.WaitEvent(func() bool {
		g := exitRecords.Lock()
		_, ok := (*g.Get())[id]
		g.Unlock()
		return ok
	})
	return check()
}

// Reap removes a zombie task from the scheduler's bookkeeping once its exit
// record has been collected; called from schedule() when it finds the
// outgoing task is a zombie instead of requeuing it.
func Reap(t *Task) {
	unregisterTask(t.ID)
}
