package fbuf

import (
	"image"
	"unsafe"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/sloplabs/slopos/internal/limine"
)

// Framebuffer owns the hardware linear framebuffer Limine handed over and a
// gg-backed RGBA backbuffer the compositor's shared-memory surfaces blit
// into. Flip copies the backbuffer (or just its damaged rectangles) into
// hardware pixel format.
type Framebuffer struct {
	width, height int
	pitch         int
	address       uint64
	format        Format
	hw            *hwImage
	ctx           *gg.Context
}

func newWithBuffer(w, h, pitch int, address uint64, format Format, pix []byte) *Framebuffer {
	hw := &hwImage{pix: pix, stride: pitch, rect: image.Rect(0, 0, w, h), format: format}
	return &Framebuffer{width: w, height: h, pitch: pitch, address: address, format: format, hw: hw, ctx: gg.NewContext(w, h)}
}

// NewFromLimine builds a Framebuffer from Limine's framebuffer response.
// toVirt maps the response's physical address into the kernel's address
// space; the booted kernel passes pmm.ToVirt, hosted tests a func that
// indexes into a plain byte slice.
func NewFromLimine(fb *limine.FramebufferResponse, toVirt func(uint64) unsafe.Pointer) *Framebuffer {
	format := detectFormat(fb.BPP, fb.RedMaskShift, fb.GreenMaskShift, fb.BlueMaskShift)
	w, h, pitch := int(fb.Width), int(fb.Height), int(fb.Pitch)
	base := toVirt(fb.Address)
	pix := unsafe.Slice((*byte)(base), pitch*h)
	return newWithBuffer(w, h, pitch, fb.Address, format, pix)
}

// NewForTest builds a Framebuffer backed by a plain Go byte slice instead of
// a physical address mapping, for hosted unit tests.
func NewForTest(w, h int, format Format) *Framebuffer {
	pitch := w * format.BytesPerPixel()
	return newWithBuffer(w, h, pitch, 0, format, make([]byte, pitch*h))
}

func (f *Framebuffer) Width() int     { return f.width }
func (f *Framebuffer) Height() int    { return f.height }
func (f *Framebuffer) Pitch() int     { return f.pitch }
func (f *Framebuffer) Address() uint64 { return f.address }
func (f *Framebuffer) Format() Format { return f.format }

// GGContext returns the gg drawing context the compositor (or this
// package's own boot-splash text) draws into; its backing image is the
// *image.RGBA backbuffer Flip reads from.
func (f *Framebuffer) GGContext() *gg.Context { return f.ctx }

func (f *Framebuffer) backbuffer() (*image.RGBA, bool) {
	im, ok := f.ctx.Image().(*image.RGBA)
	return im, ok
}

// Flip copies the backbuffer into the hardware framebuffer, restricted to
// the given damage rectangles (or the whole surface when damage is empty),
// converting pixel formats with golang.org/x/image/draw instead of a
// hand-rolled per-format loop.
func (f *Framebuffer) Flip(damage []Rect) {
	back, ok := f.backbuffer()
	if !ok {
		return
	}
	full := image.Rect(0, 0, f.width, f.height)
	if len(damage) == 0 {
		draw.Draw(f.hw, full, back, image.Point{}, draw.Src)
		return
	}
	for _, d := range damage {
		r := image.Rect(int(d.X), int(d.Y), int(d.X+d.W), int(d.Y+d.H)).Intersect(full)
		if r.Empty() {
			continue
		}
		draw.Draw(f.hw, r, back, r.Min, draw.Src)
	}
}

// Clear fills the backbuffer with a single color without touching the
// hardware framebuffer; callers flip to make it visible.
func (f *Framebuffer) Clear(r, g, b uint8) {
	f.ctx.SetRGB255(int(r), int(g), int(b))
	f.ctx.Clear()
}
