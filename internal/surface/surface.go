package surface

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/ksync"
	"github.com/sloplabs/slopos/internal/syscalls"
)

// liveSurface is one shm segment the compositor has agreed to composite:
// where it sits on screen, its accumulated damage since the last frame, and
// the wait queue surface_frame blocks on for vsync pacing.
type liveSurface struct {
	token   uint64
	x, y    int32
	damage  []syscalls.Rect
	frameSeq uint64
	frames  *ksync.WaitQueue
}

type surfaceState struct {
	byToken map[uint64]*liveSurface
}

// Registry tracks every committed surface; Compositor holds one and drains
// it during FbFlip to advance each surface's frame sequence. Nothing is
// blitted from it.
type Registry struct {
	mu ksync.IrqMutex[surfaceState]
}

func newRegistry() *Registry {
	return &Registry{mu: *ksync.NewIrqMutex(surfaceState{byToken: make(map[uint64]*liveSurface)})}
}

// Commit registers token as a surface (idempotent) and records rect as
// newly damaged.
func (r *Registry) Commit(token uint64, rect syscalls.Rect) errno.Errno {
	g := r.mu.Lock()
	defer g.Unlock()
	s := g.Get()
	ls, ok := s.byToken[token]
	if !ok {
		ls = &liveSurface{token: token, frames: ksync.NewWaitQueue()}
		s.byToken[token] = ls
	}
	ls.damage = append(ls.damage, rect)
	return 0
}

// Attach positions token's surface at (x, y) in framebuffer coordinates.
func (r *Registry) Attach(token uint64, x, y int32) errno.Errno {
	g := r.mu.Lock()
	defer g.Unlock()
	ls, ok := g.Get().byToken[token]
	if !ok {
		return errno.EINVAL
	}
	ls.x, ls.y = x, y
	return 0
}

// Damage records an additional dirty rectangle for token without otherwise
// changing its state.
func (r *Registry) Damage(token uint64, rect syscalls.Rect) errno.Errno {
	g := r.mu.Lock()
	defer g.Unlock()
	ls, ok := g.Get().byToken[token]
	if !ok {
		return errno.EINVAL
	}
	ls.damage = append(ls.damage, rect)
	return 0
}

// Frame blocks until the compositor's next flip advances token's frame
// sequence number past the value observed at call time, then returns the
// new sequence number — the syscall layer's half of a vsync-paced redraw
// loop described in §4.H.
func (r *Registry) Frame(token uint64) (uint64, errno.Errno) {
	g := r.mu.Lock()
	ls, ok := g.Get().byToken[token]
	if !ok {
		g.Unlock()
		return 0, errno.EINVAL
	}
	start := ls.frameSeq
	q := ls.frames
	g.Unlock()

	q.WaitEvent(func() bool {
		g := r.mu.Lock()
		defer g.Unlock()
		cur, ok := g.Get().byToken[token]
		return !ok || cur.frameSeq != start
	})

	g = r.mu.Lock()
	defer g.Unlock()
	cur, ok := g.Get().byToken[token]
	if !ok {
		return 0, errno.EINVAL
	}
	return cur.frameSeq, 0
}

// drainForFlip takes every surface's accumulated damage and clears it,
// returning what the compositor needs to blit this flip: token, position,
// and the rects to copy. Surfaces with no damage since the last flip are
// skipped (nothing changed, nothing to recomposite).
func (r *Registry) drainForFlip() []flipEntry {
	g := r.mu.Lock()
	defer g.Unlock()
	s := g.Get()
	var entries []flipEntry
	for _, ls := range s.byToken {
		if len(ls.damage) == 0 {
			continue
		}
		entries = append(entries, flipEntry{token: ls.token, x: ls.x, y: ls.y, damage: ls.damage})
		ls.damage = nil
		ls.frameSeq++
		ls.frames.WakeAll()
	}
	return entries
}

type flipEntry struct {
	token  uint64
	x, y   int32
	damage []syscalls.Rect
}

// Remove drops token from the registry, called when its shm segment is
// destroyed out from under it.
func (r *Registry) Remove(token uint64) {
	g := r.mu.Lock()
	defer g.Unlock()
	delete(g.Get().byToken, token)
}
