package surface

import (
	"testing"

	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/syscalls"
)

func TestObserveCommitGrowsExtentToBoundingBox(t *testing.T) {
	wt := newWindowTable()
	wt.observeCommit(1, syscalls.Rect{X: 0, Y: 0, W: 100, H: 50})
	wt.observeCommit(1, syscalls.Rect{X: 10, Y: 10, W: 20, H: 20})

	wins := wt.enumerate()
	if len(wins) != 1 {
		t.Fatalf("enumerate = %d windows, want 1", len(wins))
	}
	if wins[0].W != 100 || wins[0].H != 50 {
		t.Fatalf("extent = %dx%d, want 100x50", wins[0].W, wins[0].H)
	}
}

func TestObserveAttachSetsPosition(t *testing.T) {
	wt := newWindowTable()
	wt.observeCommit(1, syscalls.Rect{W: 1, H: 1})
	wt.observeAttach(1, 12, 34)

	wins := wt.enumerate()
	if wins[0].X != 12 || wins[0].Y != 34 {
		t.Fatalf("position = (%d,%d), want (12,34)", wins[0].X, wins[0].Y)
	}
}

func TestSetFocusUnknownWindowIsEINVAL(t *testing.T) {
	wt := newWindowTable()
	if e := wt.setFocus(5); e != errno.EINVAL {
		t.Fatalf("setFocus(unknown) = %v, want EINVAL", e)
	}
}

func TestSetFocusMarksExactlyOneWindowFocused(t *testing.T) {
	wt := newWindowTable()
	wt.observeCommit(1, syscalls.Rect{W: 1, H: 1})
	wt.observeCommit(2, syscalls.Rect{W: 1, H: 1})

	if e := wt.setFocus(2); e != 0 {
		t.Fatalf("setFocus: %v", e)
	}
	focused := 0
	for _, w := range wt.enumerate() {
		if w.Focused != 0 {
			focused++
			if w.ID != 2 {
				t.Fatalf("focused window ID = %d, want 2", w.ID)
			}
		}
	}
	if focused != 1 {
		t.Fatalf("%d windows report focused, want 1", focused)
	}
}

func TestRemoveClearsFocusIfFocusedWindowRemoved(t *testing.T) {
	wt := newWindowTable()
	wt.observeCommit(1, syscalls.Rect{W: 1, H: 1})
	wt.setFocus(1)
	wt.remove(1)

	if len(wt.enumerate()) != 0 {
		t.Fatal("enumerate still reports a removed window")
	}
	if e := wt.setFocus(1); e != errno.EINVAL {
		t.Fatalf("setFocus on removed window = %v, want EINVAL", e)
	}
}

func TestSetWindowStateOverridesInferredGeometry(t *testing.T) {
	wt := newWindowTable()
	wt.observeCommit(1, syscalls.Rect{W: 10, H: 10})

	if e := wt.setState(1, 5, 5, 640, 480); e != 0 {
		t.Fatalf("setState: %v", e)
	}
	wins := wt.enumerate()
	if wins[0].X != 5 || wins[0].Y != 5 || wins[0].W != 640 || wins[0].H != 480 {
		t.Fatalf("window = %+v, want x5 y5 640x480", wins[0])
	}
}

func TestSetWindowStateUnknownWindowIsEINVAL(t *testing.T) {
	wt := newWindowTable()
	if e := wt.setState(1, 0, 0, 1, 1); e != errno.EINVAL {
		t.Fatalf("setState(unknown) = %v, want EINVAL", e)
	}
}
