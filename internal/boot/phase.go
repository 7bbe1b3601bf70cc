// Package boot is the init orchestrator: an ordered, priority-sorted list of
// steps grouped into phases, each step calling into exactly one owning
// package (pmm, vmm, irq, sched, vfs, the drivers) to bring that subsystem
// up. Nothing here implements device or memory logic itself; this package
// only sequences calls into the packages that do.
package boot

import "github.com/sloplabs/slopos/internal/limine"

// Phase is a boot stage; phases run in this order, low to high.
type Phase int

const (
	PhaseEarlyHw Phase = iota
	PhaseMemory
	PhaseDrivers
	PhaseServices
	PhaseOptional
	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseEarlyHw:
		return "EarlyHw"
	case PhaseMemory:
		return "Memory"
	case PhaseDrivers:
		return "Drivers"
	case PhaseServices:
		return "Services"
	case PhaseOptional:
		return "Optional"
	default:
		return "?"
	}
}

// StepFlags carries a step's priority and whether its failure is fatal.
type StepFlags struct {
	Priority uint8 // lower runs first within a phase
	Optional bool  // a non-nil error here logs a warning instead of panicking
}

// BootInitStep is one unit of init work. The real kernel would place these
// in a linker-section range (`__start_boot_init_phase`/`__stop_boot_init_phase`
// per phase) populated by //go:linkname-style section variables; since this
// exercise never runs a true kernel linker script, each phase's steps are
// built as an ordinary Go slice literal in this package instead, which
// preserves the same "array of steps, sorted by priority, run in order"
// semantics without depending on link-time section collection.
type BootInitStep struct {
	Name  string
	Flags StepFlags
	Func  func(info *limine.BootInfo) error
}

// progress is the step counter splash reporting reads; see Progress.
var progress struct {
	phase     Phase
	completed int
	total     int
}

// Progress reports how far Run has gotten, for a splash screen or serial
// banner to poll without the orchestrator itself depending on fbuf.
func Progress() (phase Phase, completed, total int) {
	return progress.phase, progress.completed, progress.total
}

// progressHook fires after every step, letting cmd/kernel redraw a splash
// banner synchronously rather than from a separate goroutine — there is no
// concurrent execution context to poll Progress() from until the scheduler
// this very boot sequence is building has something else to run.
var progressHook = func(Phase, int, int) {}

// RegisterProgressHook installs the splash-redraw callback; cmd/kernel
// calls this before Run so every step's completion gets a fresh frame.
func RegisterProgressHook(f func(phase Phase, completed, total int)) { progressHook = f }

// runPhase copies steps into a local slice (never mutates the caller's
// slice), insertion-sorts by priority, and runs each step in order. A
// non-optional step returning an error is fatal; an optional step's error
// is reported but the phase continues. The progress counter advances after
// every step regardless of outcome.
func runPhase(p Phase, steps []BootInitStep, info *limine.BootInfo, onFatal func(step string, err error)) {
	ordered := make([]BootInitStep, len(steps))
	copy(ordered, steps)
	for i := 1; i < len(ordered); i++ {
		j := i
		for j > 0 && ordered[j-1].Flags.Priority > ordered[j].Flags.Priority {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
			j--
		}
	}

	progress.phase = p
	for _, step := range ordered {
		err := step.Func(info)
		progress.completed++
		progressHook(progress.phase, progress.completed, progress.total)
		if err == nil {
			continue
		}
		if step.Flags.Optional {
			warnStepFailed(p, step.Name, err)
			continue
		}
		onFatal(step.Name, err)
	}
}
