package surface

import (
	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/fbuf"
	"github.com/sloplabs/slopos/internal/syscalls"
)

// Compositor is the concrete syscalls.Surfaces backend: internal/fbuf's draw
// surface plus the shm table, surface registry and window table this package
// owns. The syscalls.Input backend is the separate Input type, which NewInput
// builds over a Compositor's window table. Actually compositing N client
// surfaces' pixels into the framebuffer — blending, z-order, window
// chrome — is the "compositor's rendering math" spec.md's Non-goals
// exclude; FbFlip only pushes whatever is already in internal/fbuf's
// backbuffer out to hardware. cmd/compositor (a hosted/cross-compiled
// userland program per §C) is what actually draws into that backbuffer
// through its own shm mapping before calling fb_flip.
type Compositor struct {
	fb       *fbuf.Framebuffer
	shm      *ShmTable
	registry *Registry
	windows  *windowTable
}

// NewCompositor wires fb and an shm table backed by alloc into a ready
// Surfaces backend. Call RegisterSurfaces with the result (and RegisterInput
// with NewInput's) during boot's Services phase.
func NewCompositor(fb *fbuf.Framebuffer, alloc FrameAllocator) *Compositor {
	return &Compositor{
		fb:       fb,
		shm:      NewShmTable(alloc),
		registry: newRegistry(),
		windows:  newWindowTable(),
	}
}

func toFbufFormat(f fbuf.Format) syscalls.PixelFormat {
	switch f {
	case fbuf.FormatRgb888:
		return syscalls.FormatRgb888
	case fbuf.FormatRgba8888:
		return syscalls.FormatRgba8888
	case fbuf.FormatBgr888:
		return syscalls.FormatBgr888
	default:
		return syscalls.FormatBgra8888
	}
}

func (c *Compositor) FbInfo() syscalls.FbInfo {
	return syscalls.FbInfo{
		Address:       c.fb.Address(),
		Width:         uint32(c.fb.Width()),
		Height:        uint32(c.fb.Height()),
		Pitch:         uint32(c.fb.Pitch()),
		BytesPerPixel: uint32(c.fb.Format().BytesPerPixel()),
		Format:        toFbufFormat(c.fb.Format()),
	}
}

func toRects(in []syscalls.Rect) []fbuf.Rect {
	if len(in) == 0 {
		return nil
	}
	out := make([]fbuf.Rect, len(in))
	for i, r := range in {
		out[i] = fbuf.Rect{X: r.X, Y: r.Y, W: r.W, H: r.H}
	}
	return out
}

// FbFlip pushes the current backbuffer content into hardware and advances
// every live surface's frame sequence, signalling any task blocked in
// surface_frame. A real display has exactly one vsync tick shared by every
// window, so treating each hardware flip as "the next frame" for all
// surfaces (rather than tracking per-surface redraw independently) matches
// how a single-output compositor actually paces its clients.
func (c *Compositor) FbFlip(damage []syscalls.Rect) errno.Errno {
	c.fb.Flip(toRects(damage))
	c.registry.drainForFlip()
	return 0
}

func (c *Compositor) SurfaceCommit(token uint64, rect syscalls.Rect) errno.Errno {
	if _, ok := c.shm.bytes(token); !ok {
		return errno.EINVAL
	}
	if e := c.registry.Commit(token, rect); e != 0 {
		return e
	}
	c.windows.observeCommit(token, rect)
	return 0
}

func (c *Compositor) SurfaceAttach(token uint64, x, y int32) errno.Errno {
	if e := c.registry.Attach(token, x, y); e != 0 {
		return e
	}
	c.windows.observeAttach(token, x, y)
	return 0
}

func (c *Compositor) SurfaceFrame(token uint64) (uint64, errno.Errno) {
	return c.registry.Frame(token)
}

func (c *Compositor) SurfaceDamage(token uint64, rect syscalls.Rect) errno.Errno {
	return c.registry.Damage(token, rect)
}

func (c *Compositor) ShmCreate(size uint64) (uint64, errno.Errno) { return c.shm.Create(size) }

func (c *Compositor) ShmMap(taskID, token uint64) (uintptr, errno.Errno) {
	return c.shm.Map(taskID, token)
}

func (c *Compositor) ShmUnmap(taskID, token uint64) errno.Errno { return c.shm.Unmap(taskID, token) }

func (c *Compositor) ShmDestroy(token uint64) errno.Errno {
	c.registry.Remove(token)
	c.windows.remove(token)
	return c.shm.Destroy(token)
}

func (c *Compositor) ShmAcquire(token uint64) errno.Errno { return c.shm.Acquire(token) }
func (c *Compositor) ShmRelease(token uint64) errno.Errno { return c.shm.Release(token) }
