package ksync

// TaskHandle is an opaque scheduler task identifier. ksync never dereferences
// it; it is only ever handed back to the Scheduler hook.
type TaskHandle uintptr

// Scheduler is the minimal hook WaitQueue needs from the scheduler package.
// ksync cannot import sched directly (sched imports ksync for IrqMutex), so
// the scheduler registers its implementation at boot, the same way the LAPIC
// IPI senders are "registered with the sync layer" per the IRQ/MSI fabric
// design.
type Scheduler interface {
	CurrentTask() TaskHandle
	BlockCurrentTask()
	BlockCurrentTaskTimeout(ms uint64) (timedOut bool)
	MarkReady(TaskHandle)
}

var scheduler Scheduler

// RegisterScheduler installs the scheduler hook. Called once from
// sched.Init.
func RegisterScheduler(s Scheduler) { scheduler = s }

const maxWaiters = 64

// WaitQueue is a fixed-capacity queue of task handles blocked on some
// condition, protected by its own IrqMutex.
type WaitQueue struct {
	state IrqMutex[waitQueueState]
}

type waitQueueState struct {
	waiters        [maxWaiters]TaskHandle
	n              int
	pendingWakeups int // closes the lost-wakeup window; see WaitEvent
}

// NewWaitQueue returns an empty queue.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{state: *NewIrqMutex(waitQueueState{})}
}

// WaitEvent blocks the current task until cond() returns true. cond is
// re-checked under the queue lock both before enqueuing and is assumed to be
// re-checked by the caller again after WaitEvent returns (the classic
// wait-on-predicate pattern), since a wake can be spurious if multiple
// waiters raced.
//
// The pendingWakeups counter closes the lost-wakeup window between a waiter
// deciding to block and the scheduler actually parking it: WakeOne/WakeAll
// increment it even when they find no enqueued waiter (the waiter hasn't
// enqueued itself yet, or is in the process of being dequeued after a
// timeout), and a waiter that finds a positive counter on entry consumes one
// unit and skips blocking instead of sleeping through a wakeup that already
// happened.
func (q *WaitQueue) WaitEvent(cond func() bool) {
	for {
		if cond() {
			return
		}
		g := q.state.Lock()
		s := g.Get()
		if cond() {
			g.Unlock()
			return
		}
		if s.pendingWakeups > 0 {
			s.pendingWakeups--
			g.Unlock()
			continue
		}
		self := scheduler.CurrentTask()
		if s.n < maxWaiters {
			s.waiters[s.n] = self
			s.n++
		}
		g.Unlock()
		scheduler.BlockCurrentTask()
	}
}

// WaitEventTimeout is WaitEvent bounded by a deadline in milliseconds.
// Returns true if cond became true, false on timeout.
func (q *WaitQueue) WaitEventTimeout(cond func() bool, ms uint64) bool {
	for {
		if cond() {
			return true
		}
		g := q.state.Lock()
		s := g.Get()
		if cond() {
			g.Unlock()
			return true
		}
		if s.pendingWakeups > 0 {
			s.pendingWakeups--
			g.Unlock()
			continue
		}
		self := scheduler.CurrentTask()
		if s.n < maxWaiters {
			s.waiters[s.n] = self
			s.n++
		}
		g.Unlock()
		if scheduler.BlockCurrentTaskTimeout(ms) {
			return cond()
		}
	}
}

// WakeOne wakes a single waiter, if any, and otherwise records a pending
// wakeup so a waiter currently racing into WaitEvent does not miss it.
func (q *WaitQueue) WakeOne() {
	g := q.state.Lock()
	s := g.Get()
	if s.n == 0 {
		s.pendingWakeups++
		g.Unlock()
		return
	}
	h := s.waiters[0]
	copy(s.waiters[:s.n-1], s.waiters[1:s.n])
	s.n--
	g.Unlock()
	scheduler.MarkReady(h)
}

// WakeAll collects every waiting handle under the lock, releases the lock,
// then unblocks each — so MarkReady (which may itself touch scheduler
// queues guarded by a different lock) never runs while WaitQueue's own lock
// is held.
func (q *WaitQueue) WakeAll() {
	g := q.state.Lock()
	s := g.Get()
	var handles [maxWaiters]TaskHandle
	n := s.n
	copy(handles[:n], s.waiters[:n])
	s.n = 0
	g.Unlock()
	for i := 0; i < n; i++ {
		scheduler.MarkReady(handles[i])
	}
}
