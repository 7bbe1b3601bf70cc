package fbuf

import (
	"image"
	"image/color"
)

// hwImage is a draw.Image view over the raw hardware framebuffer bytes in
// one of the four wire pixel formats. Wrapping the raw bytes this way lets
// golang.org/x/image/draw do the format conversion (it only needs At/Set)
// instead of a hand-rolled per-format copy loop like the teacher's
// copyFramebufferToGG/flushGGToFramebuffer pair.
type hwImage struct {
	pix    []byte
	stride int
	rect   image.Rectangle
	format Format
}

func (h *hwImage) ColorModel() color.Model { return color.RGBAModel }
func (h *hwImage) Bounds() image.Rectangle { return h.rect }

func (h *hwImage) offset(x, y int) int {
	return y*h.stride + (x-h.rect.Min.X)*h.format.BytesPerPixel()
}

func (h *hwImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(h.rect)) {
		return color.RGBA{}
	}
	off := h.offset(x, y)
	switch h.format {
	case FormatRgb888:
		return color.RGBA{R: h.pix[off], G: h.pix[off+1], B: h.pix[off+2], A: 0xFF}
	case FormatBgr888:
		return color.RGBA{R: h.pix[off+2], G: h.pix[off+1], B: h.pix[off], A: 0xFF}
	case FormatRgba8888:
		return color.RGBA{R: h.pix[off], G: h.pix[off+1], B: h.pix[off+2], A: h.pix[off+3]}
	case FormatBgra8888:
		return color.RGBA{R: h.pix[off+2], G: h.pix[off+1], B: h.pix[off], A: h.pix[off+3]}
	default:
		return color.RGBA{}
	}
}

// Set implements draw.Image so golang.org/x/image/draw.Draw can write
// converted pixels straight into the hardware buffer.
func (h *hwImage) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(h.rect)) {
		return
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	off := h.offset(x, y)
	switch h.format {
	case FormatRgb888:
		h.pix[off], h.pix[off+1], h.pix[off+2] = rgba.R, rgba.G, rgba.B
	case FormatBgr888:
		h.pix[off], h.pix[off+1], h.pix[off+2] = rgba.B, rgba.G, rgba.R
	case FormatRgba8888:
		h.pix[off], h.pix[off+1], h.pix[off+2], h.pix[off+3] = rgba.R, rgba.G, rgba.B, rgba.A
	case FormatBgra8888:
		h.pix[off], h.pix[off+1], h.pix[off+2], h.pix[off+3] = rgba.B, rgba.G, rgba.R, rgba.A
	}
}
