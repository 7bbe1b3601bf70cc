// Command kernel is SlopOS's entry point: it hands the Limine boot
// protocol's response structs to internal/boot and otherwise gets out of
// the way, the same thin-main shape mazarin's own src/kernel.go keeps
// (parse boot info, delegate everything to the kernel package, never hold
// logic in main itself).
package main

import (
	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/boot"
	"github.com/sloplabs/slopos/internal/limine"
)

func main() {
	info := limine.Handoff()
	boot.RegisterProgressHook(drawSplash)
	boot.Run(info)

	// Run has scheduled /sbin/init and the idle task; the first timer
	// interrupt switches this call stack away for good. Until then, sit
	// with interrupts enabled exactly like idleLoop does.
	arch.RestoreFlags(0x202)
	for {
		arch.Halt()
	}
}

func drawSplash(phase boot.Phase, completed, total int) {
	fb := boot.Framebuffer()
	if fb == nil {
		return
	}
	pct := 0
	if total > 0 {
		pct = completed * 100 / total
	}
	fb.DrawBootProgress(phase.String(), pct)
}
