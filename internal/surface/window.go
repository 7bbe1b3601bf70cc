package surface

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/ksync"
	"github.com/sloplabs/slopos/internal/syscalls"
)

// window is the window-manager-visible half of a surface: geometry derived
// from its commits plus whatever set_window_state has explicitly overridden.
// Ownership (OwnerPID) has no carrier in the surface_commit/shm_create ABI
// as specced — neither call takes a task id — so every window reports
// OwnerPID 0; a real multi-client compositor would need that added to the
// syscall, which is out of scope for reworking an already-built layer.
type window struct {
	token      uint64
	x, y       int32
	w, h       uint32
	haveExtent bool
}

type windowTableState struct {
	byToken map[uint64]*window
	focused uint64
}

// windowTable tracks window geometry for enumerate_windows/set_focus/
// set_window_state; Compositor updates it as a side effect of the surface
// calls clients already make, so userland doesn't need a separate
// "register as a window" syscall.
type windowTable struct {
	mu ksync.IrqMutex[windowTableState]
}

func newWindowTable() *windowTable {
	return &windowTable{mu: *ksync.NewIrqMutex(windowTableState{byToken: make(map[uint64]*window)})}
}

// observeCommit grows a window's tracked extent to cover rect, the closest
// thing to a size this ABI reports (the first commit's rect is
// conventionally the surface's full size).
func (t *windowTable) observeCommit(token uint64, rect syscalls.Rect) {
	g := t.mu.Lock()
	defer g.Unlock()
	win, ok := g.Get().byToken[token]
	if !ok {
		win = &window{token: token}
		g.Get().byToken[token] = win
	}
	right, bottom := rect.X+rect.W, rect.Y+rect.H
	if !win.haveExtent || right > win.w {
		win.w = right
	}
	if !win.haveExtent || bottom > win.h {
		win.h = bottom
	}
	win.haveExtent = true
}

func (t *windowTable) observeAttach(token uint64, x, y int32) {
	g := t.mu.Lock()
	defer g.Unlock()
	win, ok := g.Get().byToken[token]
	if !ok {
		win = &window{token: token}
		g.Get().byToken[token] = win
	}
	win.x, win.y = x, y
}

func (t *windowTable) remove(token uint64) {
	g := t.mu.Lock()
	defer g.Unlock()
	delete(g.Get().byToken, token)
	if g.Get().focused == token {
		g.Get().focused = 0
	}
}

func (t *windowTable) setFocus(id uint32) errno.Errno {
	g := t.mu.Lock()
	defer g.Unlock()
	if _, ok := g.Get().byToken[uint64(id)]; !ok {
		return errno.EINVAL
	}
	g.Get().focused = uint64(id)
	return 0
}

func (t *windowTable) setState(id uint32, x, y int32, w, h uint32) errno.Errno {
	g := t.mu.Lock()
	defer g.Unlock()
	win, ok := g.Get().byToken[uint64(id)]
	if !ok {
		return errno.EINVAL
	}
	win.x, win.y, win.w, win.h = x, y, w, h
	win.haveExtent = true
	return 0
}

func (t *windowTable) enumerate() []syscalls.WindowInfo {
	g := t.mu.Lock()
	defer g.Unlock()
	s := g.Get()
	out := make([]syscalls.WindowInfo, 0, len(s.byToken))
	for _, win := range s.byToken {
		focused := uint32(0)
		if s.focused == win.token {
			focused = 1
		}
		out = append(out, syscalls.WindowInfo{
			ID: uint32(win.token), X: win.x, Y: win.y, W: win.w, H: win.h, Focused: focused,
		})
	}
	return out
}
