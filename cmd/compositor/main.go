// Command compositor is SlopOS's one privileged display-policy task: the
// pixel math (damage tracking, shm blit, format conversion) all lives
// kernel-side in internal/surface, gated behind TaskFlagCompositor; this
// program only drives that engine over the syscall ABI — polling input,
// deciding which window has focus, and asking the kernel to flip the
// framebuffer once a batch of input has been handled. Rendering math is
// explicitly out of scope for this repository, so nothing here touches a
// pixel directly.
package main

import (
	"github.com/sloplabs/slopos/internal/userlib"
)

// tabScancode is scan set 1's make code for Tab (internal/drivers/ps2's
// scancodeSet1ASCII table maps the same byte to '\t'); cycling focus on Tab
// is the one keyboard-only window-switch gesture available without a mouse.
const tabScancode = 0x0F

const pollBatchSize = 32

func main() {
	if _, errno := userlib.GetFbInfo(); errno != 0 {
		userlib.Exit(1)
	}

	for {
		events := make([]userlib.InputEvent, pollBatchSize)
		n, errno := userlib.InputPollBatch(events)
		if errno != 0 {
			userlib.SleepMs(10)
			continue
		}

		damaged := false
		for _, ev := range events[:n] {
			if ev.Code == tabScancode && ev.Value == 1 {
				cycleFocus()
				damaged = true
			}
		}

		if damaged || n > 0 {
			userlib.FbFlip(nil)
		}
		userlib.SleepMs(10)
	}
}

// cycleFocus advances focus to the window after whichever one currently
// holds it, wrapping to the first window; with no windows, it's a no-op.
func cycleFocus() {
	wins := make([]userlib.WindowInfo, 64)
	n, errno := userlib.EnumerateWindows(wins)
	if errno != 0 || n == 0 {
		return
	}
	userlib.SetFocus(nextFocusTarget(wins[:n]))
}

// nextFocusTarget picks the window ID after the currently-focused one,
// wrapping around; with nothing focused yet it defaults to the first
// window. Split out from cycleFocus so the selection policy is testable
// without a syscall backend.
func nextFocusTarget(wins []userlib.WindowInfo) uint32 {
	next := wins[0].ID
	for i, w := range wins {
		if w.Focused != 0 {
			next = wins[(i+1)%len(wins)].ID
			break
		}
	}
	return next
}
