// Package pcr implements the Processor Control Region: one struct per CPU,
// reached through GS in kernel mode. Field layout at offsets
// 0/8/16/24 is load-bearing — the SYSCALL/SYSRET and interrupt-entry
// trampolines index into it directly — so SelfPtr/UserRSPTmp/KernelRSP/CPUIndex
// must never move or change type.
package pcr

import (
	"sync/atomic"
	"unsafe"

	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/ksync"
)

const (
	maxCPUs        = 256
	kernelStackPages = 16 // 64 KiB kernel stack, with no guard page
	istStackPages    = 4  // per IST slot
	numISTStacks     = 3  // double-fault, NMI, machine-check
)

// PCRs are elements of the static pool below, so they are neither
// page-aligned nor padded to a page; field order here only has to keep the
// first four fields first.
type PCR struct {
	SelfPtr    uintptr // offset 0: self-pointer, read via GS:[0]
	UserRSPTmp uintptr // offset 8: saved user RSP across SYSCALL
	KernelRSP  uintptr // offset 16: kernel RSP loaded on SYSCALL entry
	CPUIndex   uint32  // offset 24: this CPU's index
	_          uint32  // padding to keep 8-byte alignment for what follows

	APICID uint32

	GDT GDT
	TSS TSS

	kernelStack  []byte
	istStacks    [numISTStacks][]byte

	CurrentTask unsafe.Pointer // *sched.Task, opaque here to avoid an import cycle

	ContextSwitches  atomic.Uint64
	InterruptCount   atomic.Uint64
	SyscallCount     atomic.Uint64
	preemptCount     atomic.Uint32
	InInterrupt      atomic.Bool
	reschedulePending atomic.Bool
}

var (
	pool      [maxCPUs]PCR
	allocated atomic.Uint32 // next free index in pool
	byAPICID  ksync.IrqMutex[map[uint32]*PCR]
	byIndex   [maxCPUs]atomic.Pointer[PCR]
	bspAPICID uint32
	bspInit   ksync.InitFlag
)

func init() {
	byAPICID = *ksync.NewIrqMutex(make(map[uint32]*PCR))
}

// AllocatePCR reserves the next PCR from the static pool for a CPU and
// returns it zero-filled apart from CPUIndex.
func AllocatePCR() *PCR {
	idx := allocated.Add(1) - 1
	if idx >= maxCPUs {
		panic("pcr: exceeded maxCPUs")
	}
	p := &pool[idx]
	p.CPUIndex = idx
	p.SelfPtr = uintptr(unsafe.Pointer(p))
	byIndex[idx].Store(p)
	return p
}

// Install performs the fixed bring-up sequence for a CPU's PCR: allocate
// stacks, build the GDT/TSS, load GDTR, reload segment registers, LTR the
// TSS selector, and point GS_BASE/KERNEL_GS_BASE at this PCR. Order matters:
// the GDT must exist before LGDT, and the TSS descriptor inside the GDT must
// exist before LTR.
func (p *PCR) Install(apicID uint32, isBSP bool) {
	p.APICID = apicID
	p.kernelStack = make([]byte, kernelStackPages*pageSize)
	p.KernelRSP = uintptr(unsafe.Pointer(&p.kernelStack[len(p.kernelStack)-1])) + 1
	for i := range p.istStacks {
		p.istStacks[i] = make([]byte, istStackPages*pageSize)
	}

	p.TSS.SetISTStacks(p.istStacks[:])
	p.GDT.Build(&p.TSS)
	p.GDT.Load()
	p.TSS.LoadSelector()

	gsBase := uint64(uintptr(unsafe.Pointer(p)))
	arch.WRMSR(msrGSBase, gsBase)
	arch.WRMSR(msrKernelGSBase, gsBase)

	g := byAPICID.Lock()
	m := g.Get()
	(*m)[apicID] = p
	g.Unlock()

	if isBSP {
		bspAPICID = apicID
		bspInit.InitOnce()
	}
}

const pageSize = 4096

const (
	msrGSBase       = 0xC0000101
	msrKernelGSBase = 0xC0000102
)

// ForAPICID looks up a CPU's PCR by its local APIC id, under acquire
// ordering via the map's IrqMutex — used for cross-CPU access such as
// queueing a TLB-shootdown descriptor on a target CPU.
func ForAPICID(apicID uint32) (*PCR, bool) {
	g := byAPICID.Lock()
	defer g.Unlock()
	p, ok := (*g.Get())[apicID]
	return p, ok
}

// ForIndex looks up a CPU's PCR by its dense CPU index.
func ForIndex(idx uint32) (*PCR, bool) {
	if idx >= maxCPUs {
		return nil, false
	}
	p := byIndex[idx].Load()
	return p, p != nil
}

// Current returns the calling CPU's PCR by reading back the GS_BASE MSR
// Install pointed at it; valid from any kernel-mode context after Install
// has run on this CPU.
func Current() *PCR {
	base := arch.RDMSR(msrGSBase)
	return (*PCR)(unsafe.Pointer(uintptr(base)))
}

// BSPAPICID returns the boot CPU's local APIC id; valid only after the BSP's
// Install has run.
func BSPAPICID() uint32 { return bspAPICID }

// CPUCount reports how many PCRs have been allocated so far.
func CPUCount() uint32 { return allocated.Load() }

// --- ksync.PreemptCounter adapter -------------------------------------------------

type preemptCounterView struct{ p *PCR }

func (v preemptCounterView) Inc() uint32 { return v.p.preemptCount.Add(1) }
func (v preemptCounterView) Dec() uint32 { return v.p.preemptCount.Add(^uint32(0)) }
func (v preemptCounterView) ReschedulePending() bool { return v.p.reschedulePending.Load() }
func (v preemptCounterView) ClearReschedulePending() { v.p.reschedulePending.Store(false) }
func (v preemptCounterView) TriggerYieldPoint()      { yieldPointHook() }

var yieldPointHook = func() {} // registered by sched.Init

// RegisterYieldPointHook installs the function PreemptGuard calls when a
// guard's release finds preempt_count at zero with a reschedule pending.
func RegisterYieldPointHook(f func()) { yieldPointHook = f }

// SetReschedulePending marks this CPU's PCR as having a schedule() owed to
// it at the next safe point — set by the timer IRQ handler when the running
// task's quantum has expired.
func (p *PCR) SetReschedulePending() { p.reschedulePending.Store(true) }

func (p *PCR) ReschedulePending() bool { return p.reschedulePending.Load() }

// ClearReschedulePending acknowledges an owed reschedule, called once
// schedule() has actually run.
func (p *PCR) ClearReschedulePending() { p.reschedulePending.Store(false) }

// PreemptCounterView adapts this PCR to ksync.PreemptCounter, for
// registration via ksync.RegisterPreemptCounterSource(pcr.Current).
func (p *PCR) PreemptCounterView() ksync.PreemptCounter { return preemptCounterView{p: p} }

// PreemptCount reports the current nesting depth, for diagnostics/asserts.
func (p *PCR) PreemptCount() uint32 { return p.preemptCount.Load() }
