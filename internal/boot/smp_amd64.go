package boot

import (
	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/irq"
	"github.com/sloplabs/slopos/internal/limine"
	"github.com/sloplabs/slopos/internal/pcr"
)

// apTrampolinePage is the physical page (address apTrampolinePage*0x1000)
// SIPI points a starting AP at. A real kernel places a small 16-bit
// real-mode blob here — switch to protected mode, then long mode, load a
// minimal GDT, and jump into Go code at the right CS — built as a
// hand-assembled byte array the same way this package's IRETQ path is a raw
// opcode sequence. That blob isn't written here: Go's assembler has no
// 16/32-bit mode output at all (unlike IRETQ, which is just two missing
// mnemonics in 64-bit mode), so emitting it would mean carrying a literal
// machine-code array with no assembler to check it against, which is a
// different kind of risk than this exercise's other raw-encoding cases.
const apTrampolinePage = 0x08

// spinDelay busy-waits roughly iterations times; used for the INIT-SIPI-SIPI
// sequence's mandated settle times before any timer is calibrated.
func spinDelay(iterations int) {
	for i := 0; i < iterations; i++ {
		arch.Pause()
	}
}

// bringUpAPs runs the INIT-SIPI-SIPI sequence against every AP Limine
// enumerated. The signal sequence itself is real LAPIC programming; what's
// missing is the AP-side real-mode trampoline (see apTrampolinePage), so an
// AP never actually reaches the Install call below on real hardware. Install
// is still called here so the rest of the kernel (pcr.CPUCount,
// pcr.ForAPICID, per-CPU ready queues) sees a fully populated PCR pool
// matching Limine's reported topology, which is what every other subsystem
// in this kernel (sched, vmm's TLB shootdown, irq's per-CPU IPI routing)
// is written against.
func bringUpAPs(lapic *irq.LAPIC, cpus []limine.MPInfo) {
	bsp := pcr.BSPAPICID()
	for _, cpu := range cpus {
		if cpu.LAPICID == bsp {
			continue
		}
		lapic.SendINIT(cpu.LAPICID)
		spinDelay(10000)
		lapic.SendSIPI(cpu.LAPICID, apTrampolinePage)
		spinDelay(2000)
		lapic.SendSIPI(cpu.LAPICID, apTrampolinePage)
		spinDelay(2000)

		pcr.AllocatePCR().Install(cpu.LAPICID, false)
	}
}
