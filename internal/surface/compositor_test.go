package surface

import (
	"testing"

	"github.com/sloplabs/slopos/internal/errno"
	"github.com/sloplabs/slopos/internal/fbuf"
	"github.com/sloplabs/slopos/internal/syscalls"
)

func newTestCompositor() *Compositor {
	fb := fbuf.NewForTest(64, 32, fbuf.FormatBgra8888)
	return NewCompositor(fb, &fakeAllocator{})
}

func TestFbInfoReportsFramebufferGeometry(t *testing.T) {
	c := newTestCompositor()
	info := c.FbInfo()
	if info.Width != 64 || info.Height != 32 {
		t.Fatalf("FbInfo = %+v, want 64x32", info)
	}
	if info.BytesPerPixel != 4 {
		t.Fatalf("BytesPerPixel = %d, want 4", info.BytesPerPixel)
	}
	if info.Format != syscalls.FormatBgra8888 {
		t.Fatalf("Format = %v, want FormatBgra8888", info.Format)
	}
}

func TestSurfaceCommitRejectsUnknownShmToken(t *testing.T) {
	c := newTestCompositor()
	if e := c.SurfaceCommit(999, syscalls.Rect{W: 1, H: 1}); e != errno.EINVAL {
		t.Fatalf("SurfaceCommit(unknown shm) = %v, want EINVAL", e)
	}
}

func TestSurfaceLifecycleThroughCompositor(t *testing.T) {
	c := newTestCompositor()
	token, e := c.ShmCreate(4096)
	if e != 0 {
		t.Fatalf("ShmCreate: %v", e)
	}

	if e := c.SurfaceCommit(token, syscalls.Rect{W: 16, H: 16}); e != 0 {
		t.Fatalf("SurfaceCommit: %v", e)
	}
	if e := c.SurfaceAttach(token, 3, 4); e != 0 {
		t.Fatalf("SurfaceAttach: %v", e)
	}

	wins := NewInput(nil, c).EnumerateWindows()
	if len(wins) != 1 || wins[0].X != 3 || wins[0].Y != 4 || wins[0].W != 16 {
		t.Fatalf("EnumerateWindows = %+v", wins)
	}

	if e := c.FbFlip(nil); e != 0 {
		t.Fatalf("FbFlip: %v", e)
	}
	if e := c.ShmDestroy(token); e != 0 {
		t.Fatalf("ShmDestroy: %v", e)
	}
	if len(NewInput(nil, c).EnumerateWindows()) != 0 {
		t.Fatal("EnumerateWindows still reports a destroyed surface's window")
	}
}

func TestShmDestroyRemovesFromRegistryAndWindows(t *testing.T) {
	c := newTestCompositor()
	token, _ := c.ShmCreate(4096)
	c.SurfaceCommit(token, syscalls.Rect{W: 8, H: 8})

	if e := c.ShmDestroy(token); e != 0 {
		t.Fatalf("ShmDestroy: %v", e)
	}
	if e := c.SurfaceDamage(token, syscalls.Rect{W: 1, H: 1}); e != errno.EINVAL {
		t.Fatalf("SurfaceDamage on destroyed token = %v, want EINVAL", e)
	}
}
