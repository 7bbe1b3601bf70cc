package main

import (
	"testing"

	"github.com/sloplabs/slopos/internal/userlib"
)

func TestNextFocusTargetWrapsAround(t *testing.T) {
	wins := []userlib.WindowInfo{
		{ID: 1, Focused: 0},
		{ID: 2, Focused: 1},
		{ID: 3, Focused: 0},
	}
	if got := nextFocusTarget(wins); got != 3 {
		t.Errorf("nextFocusTarget = %d, want 3", got)
	}
}

func TestNextFocusTargetWrapsToFirst(t *testing.T) {
	wins := []userlib.WindowInfo{
		{ID: 1, Focused: 0},
		{ID: 2, Focused: 0},
		{ID: 3, Focused: 1},
	}
	if got := nextFocusTarget(wins); got != 1 {
		t.Errorf("nextFocusTarget = %d, want 1", got)
	}
}

func TestNextFocusTargetDefaultsToFirstWhenNoneFocused(t *testing.T) {
	wins := []userlib.WindowInfo{
		{ID: 5, Focused: 0},
		{ID: 6, Focused: 0},
	}
	if got := nextFocusTarget(wins); got != 5 {
		t.Errorf("nextFocusTarget = %d, want 5", got)
	}
}

func TestNextFocusTargetSingleWindow(t *testing.T) {
	wins := []userlib.WindowInfo{{ID: 9, Focused: 1}}
	if got := nextFocusTarget(wins); got != 9 {
		t.Errorf("nextFocusTarget = %d, want 9 (wraps to itself)", got)
	}
}
