// Run assembles the five phases' step lists and executes them in order. A
// real linker-section build would discover BootInitStep values automatically
// (see phase.go's doc comment); here every step is named explicitly, which
// also makes the boot sequence readable top to bottom instead of scattered
// across init() side effects.
package boot

import (
	"reflect"
	"unsafe"

	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/cmdline"
	"github.com/sloplabs/slopos/internal/drivers/pci"
	"github.com/sloplabs/slopos/internal/drivers/pit"
	"github.com/sloplabs/slopos/internal/drivers/ps2"
	"github.com/sloplabs/slopos/internal/drivers/serial"
	"github.com/sloplabs/slopos/internal/drivers/virtioblk"
	"github.com/sloplabs/slopos/internal/fbuf"
	"github.com/sloplabs/slopos/internal/irq"
	"github.com/sloplabs/slopos/internal/kdiag"
	"github.com/sloplabs/slopos/internal/limine"
	"github.com/sloplabs/slopos/internal/pcr"
	"github.com/sloplabs/slopos/internal/pmm"
	"github.com/sloplabs/slopos/internal/sched"
	"github.com/sloplabs/slopos/internal/surface"
	"github.com/sloplabs/slopos/internal/syscalls"
	"github.com/sloplabs/slopos/internal/vfs"
	"github.com/sloplabs/slopos/internal/vmm"
)

// Well-known physical MMIO windows this architecture fixes in hardware.
const (
	lapicPhysBase  = 0xFEE00000
	ioapicPhysBase = 0xFEC00000
	apicWindowSize = 0x1000

	timerHz = 1000
)

// State threaded between phases that later steps need. A real kernel would
// thread these through a boot context struct passed to each step; since
// BootInitStep.Func's signature is fixed to func(*limine.BootInfo) error
// (matching the linker-section shape phase.go describes), the packages that
// need this cross-phase state hold it in these package-level vars instead.
var (
	cfg         cmdline.Config
	com1        *serial.Port
	lapic       *irq.LAPIC
	ioapic      *irq.Controller
	keyboard    *ps2.Keyboard
	blockDev    *virtioblk.Device
	rootVFS     *vfs.VFS
	kheap       *vmm.KHeap
	kernelAS    *vmm.AddressSpace
	framebuffer *fbuf.Framebuffer
)

// Framebuffer returns the booted framebuffer, or nil before the "compositor"
// services step has set it up (and for good if that optional step failed). cmd/kernel reads this from its progress hook to draw
// the boot splash without this package importing anything beyond fbuf's own
// construction, which it already needs for the driver step itself.
func Framebuffer() *fbuf.Framebuffer { return framebuffer }

// Run brings the machine from Limine handoff to a scheduled init process.
func Run(info *limine.BootInfo) {
	phases := [phaseCount][]BootInitStep{
		PhaseEarlyHw:  earlyHwSteps(),
		PhaseMemory:   memorySteps(),
		PhaseDrivers:  driverSteps(),
		PhaseServices: serviceSteps(),
		PhaseOptional: optionalSteps(),
	}

	total := 0
	for _, steps := range phases {
		total += len(steps)
	}
	progress.total = total

	for p, steps := range phases {
		phase := Phase(p)
		runPhase(phase, steps, info, func(name string, err error) {
			fatalStepFailed(phase, name, err)
		})
	}
}

func earlyHwSteps() []BootInitStep {
	return []BootInitStep{
		{
			Name:  "serial console",
			Flags: StepFlags{Priority: 0},
			Func: func(info *limine.BootInfo) error {
				com1 = serial.NewCOM1()
				kdiag.RegisterSink(com1)
				kdiag.Info("slopos booting (" + info.BootloaderName + " " + info.BootloaderVersion + ")")
				return nil
			},
		},
		{
			Name:  "cmdline",
			Flags: StepFlags{Priority: 1},
			Func: func(info *limine.BootInfo) error {
				cfg = cmdline.Parse(info.KernelCmdline)
				if cfg.Debug {
					kdiag.SetLevel(kdiag.LevelDebug)
				}
				return nil
			},
		},
		{
			Name:  "memory map validation",
			Flags: StepFlags{Priority: 2},
			Func: func(info *limine.BootInfo) error {
				if !info.ValidateMemmap() {
					return errNoMemmap
				}
				return nil
			},
		},
		{
			Name:  "bsp per-cpu region",
			Flags: StepFlags{Priority: 3},
			Func: func(info *limine.BootInfo) error {
				bsp := bspLAPICID(info.CPUs)
				pcr.AllocatePCR().Install(bsp, true)
				return nil
			},
		},
	}
}

func memorySteps() []BootInitStep {
	return []BootInitStep{
		{
			Name:  "physical allocator",
			Flags: StepFlags{Priority: 0},
			Func: func(info *limine.BootInfo) error {
				pmm.SetHHDMOffset(info.HHDMOffset)
				firmware := toFirmwareRegions(info.Memmap)
				overlays := buildOverlays(info)
				pmm.Init(firmware, overlays, pmm.ZeroViaHHDM)
				return nil
			},
		},
		{
			Name:  "kernel address space",
			Flags: StepFlags{Priority: 1},
			Func: func(info *limine.BootInfo) error {
				as, err := vmm.NewAddressSpace(pmm.Global())
				if err != nil {
					return err
				}
				kernelAS = as
				as.Activate()
				return nil
			},
		},
		{
			Name:  "kernel heap",
			Flags: StepFlags{Priority: 2},
			Func: func(info *limine.BootInfo) error {
				kheap = vmm.NewKHeap(pmm.Global())
				return nil
			},
		},
	}
}

func driverSteps() []BootInitStep {
	return []BootInitStep{
		{
			Name:  "idt",
			Flags: StepFlags{Priority: 0},
			Func: func(info *limine.BootInfo) error {
				irq.SetGate(irq.SyscallVector, uint64(syscalls.VectorSyscallEntry()), uint16(pcr.KernelCodeSelector), 0, irq.GateInterrupt, 3)
				irq.SetGate(irq.IRQBase+0, uint64(syscalls.VectorIRQ0Entry()), uint16(pcr.KernelCodeSelector), 0, irq.GateInterrupt, 0)
				irq.SetGate(irq.IRQBase+1, uint64(syscalls.VectorIRQ1Entry()), uint16(pcr.KernelCodeSelector), 0, irq.GateInterrupt, 0)
				irq.Load()
				return nil
			},
		},
		{
			Name:  "lapic",
			Flags: StepFlags{Priority: 1},
			Func: func(info *limine.BootInfo) error {
				mmio := arch.NewMmioRegion(uintptr(pmm.ToVirt(pmm.PhysAddr(lapicPhysBase))), apicWindowSize)
				lapic = irq.NewLAPIC(mmio)
				lapic.Enable()
				irq.RegisterEOI(lapic.EOI)
				return nil
			},
		},
		{
			Name:  "ioapic",
			Flags: StepFlags{Priority: 2},
			Func: func(info *limine.BootInfo) error {
				mmio := arch.NewMmioRegion(uintptr(pmm.ToVirt(pmm.PhysAddr(ioapicPhysBase))), apicWindowSize)
				ioapic = irq.NewController(mmio, 0)
				return nil
			},
		},
		{
			Name:  "pit timer",
			Flags: StepFlags{Priority: 3},
			Func: func(info *limine.BootInfo) error {
				pit.Init(timerHz)
				return nil
			},
		},
		{
			Name:  "ps2 keyboard",
			Flags: StepFlags{Priority: 4},
			Func: func(info *limine.BootInfo) error {
				keyboard = ps2.NewKeyboard()
				keyboard.Init()
				return nil
			},
		},
		{
			Name:  "pci scan",
			Flags: StepFlags{Priority: 5},
			Func: func(info *limine.BootInfo) error {
				pci.Scan()
				return nil
			},
		},
		{
			Name:  "virtio-blk",
			Flags: StepFlags{Priority: 6, Optional: true},
			Func: func(info *limine.BootInfo) error {
				dev, err := virtioblk.Probe()
				if err != nil {
					return err
				}
				blockDev = dev
				return nil
			},
		},
		{
			Name:  "smp bring-up",
			Flags: StepFlags{Priority: 7, Optional: true},
			Func: func(info *limine.BootInfo) error {
				bringUpAPs(lapic, info.CPUs)
				return nil
			},
		},
	}
}

func serviceSteps() []BootInitStep {
	return []BootInitStep{
		{
			Name:  "vfs",
			Flags: StepFlags{Priority: 0},
			Func: func(info *limine.BootInfo) error {
				var disk vfs.BlockDevice
				if blockDev != nil {
					disk = newSectorBlockDevice(blockDev)
				}
				v, mountErr := vfs.Init(disk)
				rootVFS = v
				if mountErr != vfs.ErrNone {
					kdiag.Warn("vfs: /disk mount failed, continuing ramfs-only")
				}
				return nil
			},
		},
		{
			Name:  "scheduler",
			Flags: StepFlags{Priority: 1},
			Func: func(info *limine.BootInfo) error {
				sched.Init()
				sched.RegisterTrapReturnTrampoline(sched.TrapReturnEntryAddr())
				return nil
			},
		},
		{
			Name:  "exec loader",
			Flags: StepFlags{Priority: 2},
			Func: func(info *limine.BootInfo) error {
				registerExecLoader(rootVFS)
				return nil
			},
		},
		{
			Name:  "compositor",
			Flags: StepFlags{Priority: 3, Optional: true},
			Func: func(info *limine.BootInfo) error {
				if !info.HasFramebuffer() {
					return errNoFramebuffer
				}
				framebuffer = fbuf.NewFromLimine(info.Framebuffer, func(p uint64) unsafe.Pointer {
					return pmm.ToVirt(pmm.PhysAddr(p))
				})
				compositor := surface.NewCompositor(framebuffer, pmm.Global())
				syscalls.RegisterSurfaces(compositor)
				input := surface.NewInput(surface.AdaptKeyboard(adaptPS2Event), compositor)
				syscalls.RegisterInput(input)

				// The raster/damage math above lives entirely in
				// internal/surface; TaskFlagCompositor only grants the one
				// userland task allowed to drive it (fb_flip, input poll,
				// window focus) the policy loop in cmd/compositor.
				compositorTask, err := sched.NewTask("compositor", 4, sched.TaskFlagCompositor, false, func() (*vmm.AddressSpace, *vmm.Tree, error) {
					as, err := vmm.NewAddressSpace(pmm.Global())
					if err != nil {
						return nil, nil, err
					}
					return as, vmm.NewTree(), nil
				})
				if err != nil {
					return err
				}
				if e := loadExecutable(rootVFS, compositorTask, "/sbin/compositor"); e != 0 {
					return errCompositorLoadFailed
				}
				sched.ScheduleTask(compositorTask)
				return nil
			},
		},
		{
			Name:  "idle task",
			Flags: StepFlags{Priority: 4},
			Func: func(info *limine.BootInfo) error {
				idle, err := sched.NewTask("idle", 0, 0, true, nil)
				if err != nil {
					return err
				}
				idle.PrepareEntry(idleEntryAddr())
				sched.SetIdleTask(0, idle)
				return nil
			},
		},
		{
			Name:  "init process",
			Flags: StepFlags{Priority: 5},
			Func: func(info *limine.BootInfo) error {
				initTask, err := sched.NewTask("init", 4, 0, false, func() (*vmm.AddressSpace, *vmm.Tree, error) {
					as, err := vmm.NewAddressSpace(pmm.Global())
					if err != nil {
						return nil, nil, err
					}
					return as, vmm.NewTree(), nil
				})
				if err != nil {
					return err
				}
				if e := loadExecutable(rootVFS, initTask, "/sbin/init"); e != 0 {
					return errInitLoadFailed
				}
				sched.ScheduleTask(initTask)
				return nil
			},
		},
	}
}

// optionalSteps hosts the one thing spec.md's Non-goals explicitly push
// out-of-core: the test harness (Open Question (c) — "reproduce only the
// tests_run_all contract as an external collaborator interface"). boot only
// exposes the entry point an out-of-core harness registers into via
// RegisterTestRunner; it never implements suites itself.
func optionalSteps() []BootInitStep {
	return []BootInitStep{
		{
			Name:  "test harness",
			Flags: StepFlags{Priority: 0, Optional: true},
			Func: func(info *limine.BootInfo) error {
				if cfg.TestSuiteMask == 0 || testRunAll == nil {
					return nil
				}
				testRunAll(cfg)
				return nil
			},
		},
	}
}

// idleLoop is the CPU's ready-queue-empty task: enable interrupts once (a
// fresh task's flags start however NewTask left them, i.e. unset) and halt
// until the next one arrives. Never returns.
func idleLoop() {
	arch.RestoreFlags(0x202) // IF set, reserved bit 1 — same encoding exec.go gives user tasks
	for {
		arch.Halt()
	}
}

func idleEntryAddr() uintptr { return reflect.ValueOf(idleLoop).Pointer() }

// adaptPS2Event is the function literal AdaptKeyboard wraps: it converts a
// ps2.Event into surface.KeyEvent one field at a time, the seam that keeps
// internal/surface and internal/drivers/ps2 from importing each other.
func adaptPS2Event() (surface.KeyEvent, bool) {
	ev, ok := keyboard.PollEvent()
	return surface.KeyEvent{Code: ev.Code, Pressed: ev.Pressed}, ok
}

func bspLAPICID(cpus []limine.MPInfo) uint32 {
	for _, c := range cpus {
		if c.IsBSP {
			return c.LAPICID
		}
	}
	return 0
}

func toFirmwareRegions(entries []limine.MemmapEntry) []pmm.Region {
	out := make([]pmm.Region, len(entries))
	for i, e := range entries {
		kind := pmm.Reserved
		if e.Type == limine.MemmapUsable {
			kind = pmm.Usable
		}
		out[i] = pmm.Region{
			PhysBase: pmm.PhysAddr(e.Base),
			Length:   e.Length,
			Kind:     kind,
			Type:     uint32(e.Type),
			Label:    "firmware",
		}
	}
	return out
}

// buildOverlays reserves the physical ranges the firmware memmap doesn't
// already know are unusable: the framebuffer, the APIC MMIO windows, and
// the kernel image itself.
func buildOverlays(info *limine.BootInfo) []pmm.Region {
	overlays := []pmm.Region{
		{PhysBase: lapicPhysBase, Length: apicWindowSize, Kind: pmm.Reserved, Label: "lapic"},
		{PhysBase: ioapicPhysBase, Length: apicWindowSize, Kind: pmm.Reserved, Label: "ioapic"},
	}
	if info.Framebuffer != nil {
		size := info.Framebuffer.Pitch * info.Framebuffer.Height
		overlays = append(overlays, pmm.Region{
			PhysBase: pmm.PhysAddr(info.Framebuffer.Address),
			Length:   size,
			Kind:     pmm.Reserved,
			Label:    "framebuffer",
		})
	}
	if info.KernelPhysBase != 0 {
		overlays = append(overlays, pmm.Region{
			PhysBase: pmm.PhysAddr(info.KernelPhysBase),
			Length:   kernelImageReserve,
			Kind:     pmm.Reserved,
			Label:    "kernel image",
		})
	}
	return overlays
}

// kernelImageReserve is a conservative upper bound on the kernel's own
// image size until a linker-provided _kernel_end symbol exists to replace
// it; 16MiB comfortably covers this kernel's code, data and bss.
const kernelImageReserve = 16 << 20
