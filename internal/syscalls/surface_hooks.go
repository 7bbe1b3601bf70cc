package syscalls

import "github.com/sloplabs/slopos/internal/errno"

// PixelFormat enumerates the framebuffer encodings internal/fbuf can back.
type PixelFormat uint32

const (
	FormatRgb888 PixelFormat = iota
	FormatRgba8888
	FormatBgr888
	FormatBgra8888
)

// FbInfo mirrors the linear-framebuffer description handed to userland by
// fb_info: address, geometry, and pixel format, enough for a compositor to
// compute byte offsets without the kernel doing any drawing itself.
type FbInfo struct {
	Address       uint64
	Width         uint32
	Height        uint32
	Pitch         uint32
	BytesPerPixel uint32
	Format        PixelFormat
}

// Rect is a damage rectangle in framebuffer pixel coordinates.
type Rect struct {
	X, Y, W, H uint32
}

// WindowInfo is what enumerate_windows copies out per window.
type WindowInfo struct {
	ID       uint32
	OwnerPID uint64
	X, Y     int32
	W, H     uint32
	Focused  uint32
}

// InputEvent mirrors one PS/2-derived event surfaced to userland input_poll.
type InputEvent struct {
	Kind    uint32 // 0 key, 1 mouse-move, 2 mouse-button
	Code    uint32
	Value   int32
	TimeMs  uint64
}

// Surfaces is the compositor-facing hook internal/surface and internal/fbuf
// register: framebuffer geometry, shared-memory surface tokens, and damage
// tracking all live on the other side of this interface so syscalls never
// imports either package directly (the same boundary FileSystem/Console
// already establish for vfs/tty).
type Surfaces interface {
	FbInfo() FbInfo
	FbFlip(damage []Rect) errno.Errno

	SurfaceCommit(token uint64, rect Rect) errno.Errno
	SurfaceAttach(token uint64, x, y int32) errno.Errno
	SurfaceFrame(token uint64) (uint64, errno.Errno) // blocks until next frame callback, returns a sequence number
	SurfaceDamage(token uint64, rect Rect) errno.Errno

	ShmCreate(size uint64) (uint64, errno.Errno) // returns a token
	ShmMap(taskID uint64, token uint64) (uintptr, errno.Errno)
	ShmUnmap(taskID uint64, token uint64) errno.Errno
	ShmDestroy(token uint64) errno.Errno
	ShmAcquire(token uint64) errno.Errno
	ShmRelease(token uint64) errno.Errno
}

// Input is the window/focus/event hook internal/surface registers alongside
// Surfaces; split out because a headless build (test harness, no PS/2
// device) can register Surfaces without Input.
type Input interface {
	Poll() (InputEvent, bool)
	PollBatch(max int) []InputEvent
	SetFocus(windowID uint32) errno.Errno
	EnumerateWindows() []WindowInfo
	SetWindowState(windowID uint32, x, y int32, w, h uint32) errno.Errno
}

var (
	surfaces Surfaces
	input    Input
)

// RegisterSurfaces installs the framebuffer/surface/shm backend.
func RegisterSurfaces(s Surfaces) { surfaces = s }

// RegisterInput installs the input/window backend.
func RegisterInput(i Input) { input = i }
