// Package sched is the preemptive task scheduler: per-priority ready queues,
// a cooperative/preemptive context switch built on arch.SwitchContext, fork
// and clone, futexes, POSIX-style signal delivery, and wait/exit. The
// teacher kernel has no analogous subsystem (mazboot/mazarin never runs more
// than its own single control flow), so the queue/lock shape here is
// generalized from the same building blocks the rest of this kernel already
// uses for per-CPU state (pcr) and blocking (ksync.WaitQueue) rather than
// adapted from a teacher file directly.
package sched

import (
	"sync/atomic"

	"github.com/sloplabs/slopos/internal/ksync"
	"github.com/sloplabs/slopos/internal/vmm"
)

// State is a task's lifecycle state.
type State int32

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateSleeping
	StateZombie
)

// NumPriorities is the number of distinct ready-queue priority levels.
const NumPriorities = 8

// DefaultQuantumTicks is how many timer ticks a task runs before Tick marks
// it for preemption, absent any other reason to reschedule sooner.
const DefaultQuantumTicks = 10

const KernelStackSize = 16 * 1024

// Task.Flags bits gating privileged syscalls (fb_flip, surface/shm,
// input/window management) to the one process responsible for drawing.
const (
	TaskFlagCompositor        uint32 = 1 << iota // owns the framebuffer/surface registry
	TaskFlagDisplayExclusive                     // granted exclusive input focus
)

// CloneFlags controls what task_clone shares between parent and child.
type CloneFlags uint32

const (
	CloneVM CloneFlags = 1 << iota
	CloneFiles
	CloneSighand
	CloneSetTLS
)

// ExitRecord is a terminated task's reapable exit status, kept until
// waitpid consumes it.
type ExitRecord struct {
	TaskID   uint64
	ExitCode int32
	Signaled bool
	Signal   int
}

// Regs is the full register frame captured on a trap (interrupt or
// syscall) entry, restored on return to the task.
type Regs struct {
	R15, R14, R13, R12, R11, R10, R9, R8 uint64
	RBP, RDI, RSI, RDX, RCX, RBX, RAX    uint64
	VectorOrSyscallNo, ErrorCode         uint64
	RIP, CS, RFLAGS, RSP, SS             uint64
	FSBase                               uint64
}

// Task is one schedulable unit of execution, kernel-only or backed by a user
// address space.
type Task struct {
	ID       uint64
	Name     string
	Priority int
	Flags    uint32

	state    atomic.Int32
	savedRSP uintptr // valid only while not Running: top of kernel stack
	kstack   []byte

	AddressSpace *vmm.AddressSpace
	VMATree      *vmm.Tree
	KernelOnly   bool

	// BrkBase is the heap VMA's fixed start address, set once at exec time;
	// brk only ever moves the VMA's End. MmapBase/MmapCursor bound the
	// region mmap's addr=0 case searches from a bump pointer instead of a
	// real free-list, acceptable since this kernel never reclaims virtual
	// address ranges for reuse within a process's lifetime.
	BrkBase    uintptr
	MmapBase   uintptr
	MmapCursor uintptr

	Affinity    uint64 // bitmask of permitted CPU indices, 0 = any
	quantumLeft int32

	Frame Regs // the trap frame used on return to user mode

	ParentID uint64
	PID      uint64 // thread group id; equals ID for the group leader
	TID      uint64
	PGID     uint64
	SID      uint64

	signalState signalState
	exitCode    int32
	exitSignal  int
	waiters     *ksync.WaitQueue

	contextSwitches atomic.Uint64

	next *Task // intrusive link for ready/sleep queues
}

func (t *Task) State() State   { return State(t.state.Load()) }
func (t *Task) SetState(s State) { t.state.Store(int32(s)) }

var nextTaskID atomic.Uint64

// NewTask allocates a task, its kernel stack, and (for user tasks) a fresh
// address space. The caller still has to point Frame at the entry RIP and
// initial register state before calling ScheduleTask.
func NewTask(name string, priority int, flags uint32, kernelOnly bool, allocAS func() (*vmm.AddressSpace, *vmm.Tree, error)) (*Task, error) {
	t := &Task{
		ID:         nextTaskID.Add(1),
		Name:       name,
		Priority:   priority,
		Flags:      flags,
		KernelOnly: kernelOnly,
		kstack:     make([]byte, KernelStackSize),
		waiters:    ksync.NewWaitQueue(),
	}
	t.PID = t.ID
	t.TID = t.ID
	t.PGID = t.ID
	t.SID = t.ID
	t.quantumLeft = DefaultQuantumTicks
	t.SetState(StateReady)
	if !kernelOnly {
		as, tree, err := allocAS()
		if err != nil {
			return nil, err
		}
		t.AddressSpace = as
		t.VMATree = tree
	}
	return t, nil
}

// PrepareEntry lays out t's kernel stack so the first context switch into it
// jumps to entry, called once after NewTask before the task is handed to
// ScheduleTask.
func (t *Task) PrepareEntry(entry uintptr) {
	t.savedRSP = t.initialRSP(entry)
}

// initialRSP lays out the kernel stack so the first SwitchContext into this
// task pops zeroed callee-saved registers and RETs into entry, matching the
// layout arch.SwitchContext's epilogue expects (see arch_amd64.s).
func (t *Task) initialRSP(entry uintptr) uintptr {
	top := uintptr(len(t.kstack)) // offset from &kstack[0]; becomes an address below
	base := stackBaseAddr(t.kstack)
	sp := base + top
	sp &^= 0xF // 16-byte align

	slots := []uint64{
		uint64(entry), // return address popped by RET
		0,             // RBP
		0,             // RBX
		0,             // R12
		0,             // R13
		0,             // R14
		0,             // R15
	}
	for _, v := range slots {
		sp -= 8
		writeUint64(sp, v)
	}
	return sp
}
