// Package arch wraps the x86_64 primitives the rest of the kernel is built
// on: port I/O, control/model-specific registers, CPUID, TSC, and the
// cache/TLB maintenance instructions. Bodies live in arch_amd64.s, the same
// split the teacher kernel uses between its Go packages and the hand-written
// mazboot/asm primitives (Bzero, Dsb, InvalidateTlbAll, ...) — only the
// register set changed, x86_64 in place of ARM64.
package arch

import "unsafe"

// RFlags bits relevant to interrupt control.
const RFlagsIF = 1 << 9

// InB/OutB etc. are legacy port I/O, used by the serial, PS/2, PIT and PIC
// drivers. Implemented in arch_amd64.s with IN/OUT instructions.

//go:nosplit
func InB(port uint16) uint8

//go:nosplit
func OutB(port uint16, v uint8)

//go:nosplit
func InW(port uint16) uint16

//go:nosplit
func OutW(port uint16, v uint16)

//go:nosplit
func InL(port uint16) uint32

//go:nosplit
func OutL(port uint16, v uint32)

// ReadCR0/ReadCR2/ReadCR3/ReadCR4 and their Write counterparts access the
// control registers. CR2 holds the faulting address after a #PF; CR3 holds
// the current page directory's physical base.

//go:nosplit
func ReadCR0() uint64

//go:nosplit
func WriteCR0(v uint64)

//go:nosplit
func ReadCR2() uint64

//go:nosplit
func ReadCR3() uint64

//go:nosplit
func WriteCR3(v uint64)

//go:nosplit
func ReadCR4() uint64

//go:nosplit
func WriteCR4(v uint64)

// RDMSR/WRMSR access model-specific registers (GS_BASE, KERNEL_GS_BASE,
// EFER, the APIC base, ...).

//go:nosplit
func RDMSR(msr uint32) uint64

//go:nosplit
func WRMSR(msr uint32, v uint64)

// CPUID executes the CPUID instruction for the given leaf/subleaf.

//go:nosplit
func CPUID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)

// RDTSC returns the timestamp counter.

//go:nosplit
func RDTSC() uint64

// INVLPG invalidates a single TLB entry for the given virtual address.

//go:nosplit
func INVLPG(va uintptr)

// WBINVD flushes and invalidates the CPU caches. Used sparingly, e.g. before
// handing a DMA buffer to a device on a cache-incoherent path.

//go:nosplit
func WBINVD()

// SaveFlagsCLI disables interrupts and returns the previous RFLAGS so the
// caller can restore them with RestoreFlags. Used by ksync.IrqMutex.

//go:nosplit
func SaveFlagsCLI() uint64

//go:nosplit
func RestoreFlags(flags uint64)

//go:nosplit
func InterruptsEnabled() bool

// Halt executes HLT, waking on the next unmasked interrupt. The idle task's
// loop body.

//go:nosplit
func Halt()

// Pause executes PAUSE, a spin-loop hint for contended IrqMutex spin sections.

//go:nosplit
func Pause()

// SwapGS executes SWAPGS. Used only in the assembly syscall/interrupt entry
// trampolines generated alongside this package; exposed here for tests that
// exercise the surrounding Go logic against a software model instead.

//go:nosplit
func SwapGS()

// SwitchContext performs a cooperative kernel context switch: it saves the
// callee-saved registers and the current RSP to *saveRSP, then loads RSP
// from loadRSP and returns into whatever that stack's saved return address
// points at. It does not touch the interrupt flag, segment registers, or
// FS_BASE — callers (sched.contextSwitch) handle those separately since they
// differ between a voluntary yield and a trap-exit reschedule.
//
//go:nosplit
func SwitchContext(saveRSP *uintptr, loadRSP uintptr)

// MmioRegion is a bounds-checked window onto a physical MMIO range, mapped
// into the HHDM by the caller before construction. Every read/write is a
// volatile access via unsafe.Pointer and is bounds-checked against size,
// mirroring the teacier's uartPuts-style direct MMIO access but generalized
// beyond a single fixed UART address.
type MmioRegion struct {
	virtBase uintptr
	size     uintptr
}

// NewMmioRegion wraps an already-mapped virtual window. The caller
// (typically pmm's HHDM translation or a dedicated device mapping in vmm)
// is responsible for having mapped [virtBase, virtBase+size) uncached or
// write-combining as appropriate before this is constructed.
func NewMmioRegion(virtBase, size uintptr) MmioRegion {
	return MmioRegion{virtBase: virtBase, size: size}
}

func (m MmioRegion) checkOffset(off uintptr, width uintptr) {
	if off+width > m.size {
		panic("arch: mmio offset out of bounds")
	}
}

//go:nosplit
func (m MmioRegion) Read32(off uintptr) uint32 {
	m.checkOffset(off, 4)
	return *(*uint32)(unsafe.Pointer(m.virtBase + off))
}

//go:nosplit
func (m MmioRegion) Write32(off uintptr, v uint32) {
	m.checkOffset(off, 4)
	*(*uint32)(unsafe.Pointer(m.virtBase + off)) = v
}

//go:nosplit
func (m MmioRegion) Read64(off uintptr) uint64 {
	m.checkOffset(off, 8)
	return *(*uint64)(unsafe.Pointer(m.virtBase + off))
}

//go:nosplit
func (m MmioRegion) Write64(off uintptr, v uint64) {
	m.checkOffset(off, 8)
	*(*uint64)(unsafe.Pointer(m.virtBase + off)) = v
}

// Size reports the region's byte length, for diagnostics.
func (m MmioRegion) Size() uintptr { return m.size }

// Base reports the region's virtual base, for diagnostics only; callers must
// not do raw pointer arithmetic on it outside this package.
func (m MmioRegion) Base() uintptr { return m.virtBase }
