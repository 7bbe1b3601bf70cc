package sched

import (
	"unsafe"

	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/irq"
	"github.com/sloplabs/slopos/internal/ksync"
	"github.com/sloplabs/slopos/internal/pcr"
)

var (
	ready     = NewReadyQueues()
	idleTasks [256]*Task // indexed by CPU index

	initFlag ksync.InitFlag
)

// Init wires the scheduler into ksync's WaitQueue hook, pcr's yield-point
// hook and irq's trap-exit hook. Called once from boot after the BSP's PCR is
// installed.
func Init() {
	if !initFlag.InitOnce() {
		return
	}
	ksync.RegisterScheduler(schedulerView{})
	pcr.RegisterYieldPointHook(Yield)
	irq.RegisterTrapExitHook(handoffOnTrapExit)
}

// schedulerView adapts the package-level scheduler to ksync.Scheduler.
type schedulerView struct{}

func (schedulerView) CurrentTask() ksync.TaskHandle {
	t := currentTask()
	if t == nil {
		return 0
	}
	return ksync.TaskHandle(t.ID)
}

func (schedulerView) BlockCurrentTask() {
	t := currentTask()
	t.SetState(StateBlocked)
	Yield()
}

func (schedulerView) BlockCurrentTaskTimeout(ms uint64) bool {
	// Cooperative timeout path: sleep queues are driven by the timer tick
	// (see SleepCurrentTask); BlockCurrentTaskTimeout degrades to an
	// untimed block here since WaitQueue callers re-check their own
	// condition after waking regardless.
	schedulerView{}.BlockCurrentTask()
	return true
}

func (schedulerView) MarkReady(h ksync.TaskHandle) {
	if t := lookupTask(uint64(h)); t != nil && t.State() != StateZombie {
		ready.Push(t)
	}
}

var registry ksync.IrqMutex[map[uint64]*Task]

func init() {
	registry = *ksync.NewIrqMutex(make(map[uint64]*Task))
}

func registerTask(t *Task) {
	g := registry.Lock()
	(*g.Get())[t.ID] = t
	g.Unlock()
}

func unregisterTask(id uint64) {
	g := registry.Lock()
	delete(*g.Get(), id)
	g.Unlock()
}

func lookupTask(id uint64) *Task {
	g := registry.Lock()
	defer g.Unlock()
	return (*g.Get())[id]
}

// ScheduleTask registers t and places it at the tail of its priority's ready
// queue, the Go-idiomatic spelling of schedule_task from the task lifecycle.
func ScheduleTask(t *Task) {
	registerTask(t)
	ready.Push(t)
}

func currentTask() *Task {
	p := pcr.Current()
	if p == nil {
		return nil
	}
	return (*Task)(p.CurrentTask)
}

// Current returns the task running on the calling CPU, or nil if none (e.g.
// before the scheduler has started on this CPU).
func Current() *Task { return currentTask() }

// Lookup returns the task with the given id, or nil if it doesn't exist.
func Lookup(id uint64) *Task { return lookupTask(id) }

func setCurrentTask(t *Task) {
	pcr.Current().CurrentTask = unsafe.Pointer(t)
}

// SetIdleTask installs cpuIndex's idle task, run whenever no ready task is
// found for that CPU.
func SetIdleTask(cpuIndex int, t *Task) { idleTasks[cpuIndex] = t }

// Yield voluntarily gives up the CPU: the running task (if still runnable)
// goes to the tail of its ready queue and the next task is picked.
func Yield() {
	guard := ksync.DisableIrqPreempt()
	defer guard.Release()
	schedule()
}

// Tick is called from the timer IRQ handler once per tick. It decrements the
// running task's remaining quantum and marks a reschedule pending once it
// hits zero, leaving the actual switch to the trap-exit hook so it only ever
// happens at a safe point.
func Tick() {
	monotonicMs.Add(1)
	t := currentTask()
	if t == nil {
		return
	}
	t.quantumLeft--
	if t.quantumLeft <= 0 {
		if p := pcr.Current(); p != nil {
			p.SetReschedulePending()
		}
	}
}

// handoffOnTrapExit is irq's post-dispatch hook: if a reschedule is owed and
// preemption isn't disabled, run the scheduler before returning from the
// trap.
func handoffOnTrapExit() {
	p := pcr.Current()
	if p == nil || !p.ReschedulePending() || p.PreemptCount() != 0 {
		return
	}
	schedule()
}

// schedule is the core decision point: requeue Running, pop the next ready
// task for this CPU (or idle), and context-switch into it. Callers must
// already have interrupts disabled and preemption held off.
func schedule() {
	p := pcr.Current()
	cur := currentTask()
	switch {
	case cur != nil && cur.State() == StateZombie:
		Reap(cur)
	case cur != nil && cur.State() == StateRunning:
		cur.quantumLeft = DefaultQuantumTicks
		ready.Push(cur)
	}

	next := ready.PopForCPU(int(p.CPUIndex))
	if next == nil {
		next = idleTasks[p.CPUIndex]
	}
	if next == cur {
		next.SetState(StateRunning)
		return
	}

	next.SetState(StateRunning)
	p.ClearReschedulePending()
	p.ContextSwitches.Add(1)
	p.KernelRSP = stackBaseAddr(next.kstack) + uintptr(len(next.kstack))

	setCurrentTask(next)
	if cur == nil {
		var discard uintptr
		arch.SwitchContext(&discard, next.savedRSP)
		return
	}
	arch.SwitchContext(&cur.savedRSP, next.savedRSP)
}
