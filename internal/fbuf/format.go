// Package fbuf decodes the Limine-provided linear framebuffer description
// into a draw surface the compositor can blit shared-memory surfaces into:
// a gg.Context-compatible *image.RGBA backbuffer, format conversion via
// golang.org/x/image/draw, and a fixed-font boot-splash progress banner via
// golang.org/x/image/font. Grounded on the teacher's gg_circle_qemu.go,
// which does the same job (RGBA backbuffer, BGRX hardware framebuffer,
// gg.DrawCircle) by hand with per-pixel loops; this package replaces the
// hand-rolled loops with the library converters §C calls for.
package fbuf

// Format is the pixel encoding of the hardware framebuffer, decoded from
// Limine's bpp/mask-shift fields into the four-way taxonomy §6 lists.
type Format int

const (
	FormatRgb888 Format = iota
	FormatRgba8888
	FormatBgr888
	FormatBgra8888
	FormatUnknown
)

// BytesPerPixel reports the wire stride of one pixel in this format.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRgb888, FormatBgr888:
		return 3
	default:
		return 4
	}
}

func (f Format) String() string {
	switch f {
	case FormatRgb888:
		return "Rgb888"
	case FormatRgba8888:
		return "Rgba8888"
	case FormatBgr888:
		return "Bgr888"
	case FormatBgra8888:
		return "Bgra8888"
	default:
		return "Unknown"
	}
}

// detectFormat maps Limine's {bpp, mask shift} description onto one of the
// four wire formats this package knows how to draw into. The teacher's own
// QEMU/Bochs framebuffer is 32bpp with red at byte shift 16, green at 8,
// blue at 0 — red's mask sits at the highest shift, which in little-endian
// memory order reads blue-green-red-pad, i.e. Bgra8888 (the teacher's
// comment literally calls this "Bochs BGRX"). A 24bpp mode with the same
// shift order is Bgr888; the mirrored shift order (red at 0) is the
// Rgba8888/Rgb888 pair.
func detectFormat(bpp uint16, redShift, greenShift, blueShift uint8) Format {
	switch bpp {
	case 32:
		switch {
		case redShift == 16 && greenShift == 8 && blueShift == 0:
			return FormatBgra8888
		case redShift == 0 && greenShift == 8 && blueShift == 16:
			return FormatRgba8888
		}
	case 24:
		switch {
		case redShift == 16 && greenShift == 8 && blueShift == 0:
			return FormatBgr888
		case redShift == 0 && greenShift == 8 && blueShift == 16:
			return FormatRgb888
		}
	}
	return FormatUnknown
}

// Rect is a damage rectangle in framebuffer pixel coordinates, mirroring
// internal/syscalls.Rect without importing it — internal/surface converts
// between the two at its own boundary, the same indirection fs_hooks.go
// establishes between internal/vfs and internal/syscalls.
type Rect struct {
	X, Y, W, H uint32
}
