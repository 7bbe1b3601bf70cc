package syscalls

import (
	"reflect"

	"github.com/sloplabs/slopos/internal/irq"
	"github.com/sloplabs/slopos/internal/sched"
)

// vectorSyscall, vectorIRQ0, vectorIRQ1 are this kernel's three populated
// IDT gates (bodies in trapentry_amd64.s): the INT $0x80 syscall gate, and
// the two legacy lines its drivers register handlers for (PIT on IRQ0,
// PS/2 keyboard on IRQ1). Nothing else in the 256-vector table has a
// handler, the same "wire only what's registered" scope internal/boot's
// SMP bring-up already settled for.
func vectorSyscall()
func vectorIRQ0()
func vectorIRQ1()

// VectorSyscallEntry, VectorIRQ0Entry, and VectorIRQ1Entry return each
// stub's address for internal/boot to install via irq.SetGate — the same
// reflect.ValueOf(fn).Pointer() substitute for abi.FuncPCABI0 that
// sched.TrapReturnEntryAddr already uses.
func VectorSyscallEntry() uintptr { return reflect.ValueOf(vectorSyscall).Pointer() }
func VectorIRQ0Entry() uintptr    { return reflect.ValueOf(vectorIRQ0).Pointer() }
func VectorIRQ1Entry() uintptr    { return reflect.ValueOf(vectorIRQ1).Pointer() }

// trapDispatch is called by trapentry_amd64.s's shared stub with a pointer
// to the register frame it just built on the interrupt stack, laid out
// identically to sched.Regs. The syscall vector dispatches through this
// package's own table and leaves its result in f.RAX for the stub's IRETQ;
// any other vector is a hardware IRQ and goes through internal/irq's
// legacy-line dispatch instead.
//
//go:nosplit
func trapDispatch(f *sched.Regs) {
	if f.VectorOrSyscallNo == uint64(irq.SyscallVector) {
		ctx := NewContext(f)
		f.RAX = Dispatch(ctx, Sysno(f.RAX), f.RDI, f.RSI, f.RDX, f.R10, f.R8, f.R9)
		return
	}
	irq.Dispatch(uint8(f.VectorOrSyscallNo), irq.SendEOI)
}
