package sched

import (
	"github.com/sloplabs/slopos/internal/ksync"
	"github.com/sloplabs/slopos/internal/pmm"
	"github.com/sloplabs/slopos/internal/vmm"
)

// ForkTask creates a child of parent: a new task id, a COW-cloned address
// space and VMA tree, a copy of parent's trap frame with RAX=0 (the child's
// view of fork's return value), and the same priority.
func ForkTask(alloc *pmm.Allocator, parent *Task) (*Task, error) {
	child := &Task{
		ID:         nextTaskID.Add(1),
		Name:       parent.Name,
		Priority:   parent.Priority,
		Flags:      parent.Flags,
		KernelOnly: parent.KernelOnly,
		kstack:     make([]byte, KernelStackSize),
		ParentID:   parent.ID,
	}
	child.PID = child.ID
	child.TID = child.ID
	child.PGID = parent.PGID
	child.SID = parent.SID
	child.BrkBase = parent.BrkBase
	child.MmapBase = parent.MmapBase
	child.MmapCursor = parent.MmapCursor
	child.quantumLeft = DefaultQuantumTicks
	child.waiters = ksync.NewWaitQueue()
	child.SetState(StateReady)

	if !parent.KernelOnly {
		childAS, err := vmm.NewAddressSpace(alloc)
		if err != nil {
			return nil, err
		}
		child.AddressSpace = childAS
		child.VMATree = vmm.CloneCOW(alloc, parent.AddressSpace, childAS, parent.VMATree)
	}

	child.Frame = parent.Frame
	child.Frame.RAX = 0
	child.PrepareEntry(uintptr(trapReturnTrampolineAddr()))
	return child, nil
}

// CloneTask implements task_clone: like ForkTask but the child may share the
// parent's address space (CLONE_VM), file table (CLONE_FILES, tracked by the
// syscalls layer's per-task fd table, not here), and TLS base (CLONE_SETTLS).
func CloneTask(alloc *pmm.Allocator, parent *Task, flags CloneFlags, childStack uintptr, tls uint64) (*Task, error) {
	var child *Task
	if flags&CloneVM != 0 {
		child = &Task{
			ID:           nextTaskID.Add(1),
			Name:         parent.Name,
			Priority:     parent.Priority,
			Flags:        parent.Flags,
			KernelOnly:   parent.KernelOnly,
			kstack:       make([]byte, KernelStackSize),
			ParentID:     parent.ID,
			AddressSpace: parent.AddressSpace,
			VMATree:      parent.VMATree,
		}
		child.PID = parent.PID
		child.PGID = parent.PGID
		child.SID = parent.SID
		child.BrkBase = parent.BrkBase
		child.MmapBase = parent.MmapBase
		child.MmapCursor = parent.MmapCursor
	} else {
		var err error
		child, err = ForkTask(alloc, parent)
		if err != nil {
			return nil, err
		}
	}
	child.TID = child.ID
	child.quantumLeft = DefaultQuantumTicks
	child.waiters = ksync.NewWaitQueue()
	child.SetState(StateReady)

	child.Frame = parent.Frame
	child.Frame.RAX = 0
	if childStack != 0 {
		child.Frame.RSP = uint64(childStack)
	}
	if flags&CloneSetTLS != 0 {
		child.Frame.FSBase = tls
	}
	if flags&CloneSighand != 0 {
		child.signalState = parent.signalState
	}
	child.PrepareEntry(uintptr(trapReturnTrampolineAddr()))
	return child, nil
}

// trapReturnTrampolineAddr is the kernel-stack entry point a forked/cloned
// task's first context switch jumps to: it loads child.Frame into the CPU
// (IRETQ) instead of calling a Go entry function, since a forked task
// resumes exactly where its parent trapped rather than starting fresh. The
// trampoline is trapReturnEntry in this package's trapreturn_amd64.go/.s;
// boot registers its address here once.
var trapReturnTrampoline uintptr

// RegisterTrapReturnTrampoline installs the assembly entry point used by
// forked/cloned tasks on their first switch-in.
func RegisterTrapReturnTrampoline(addr uintptr) { trapReturnTrampoline = addr }

func trapReturnTrampolineAddr() uintptr { return trapReturnTrampoline }
