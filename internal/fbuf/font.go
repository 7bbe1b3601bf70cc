package fbuf

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// bannerHeight is the fixed top strip the boot orchestrator's progress text
// occupies; it never overlaps anything the compositor later draws since the
// compositor doesn't start until phase Services.
const bannerHeight = 20

// DrawSplashText renders s at (x, y) (the baseline, in pixels) onto the
// backbuffer using golang.org/x/image/font's built-in 7x13 bitmap face. No
// on-disk font asset ships with the kernel image, so this draws with
// x/image/font/basicfont directly rather than rasterizing a TrueType file
// through golang/freetype; freetype stays an indirect dependency here
// exactly as it already is for gg's own (unused in-kernel) LoadFontFace
// path. A fixed progress banner isn't a font-shaping engine, which is the
// one piece of font rendering the Non-goals exempt.
func (f *Framebuffer) DrawSplashText(x, y int, s string, c color.Color) {
	back, ok := f.backbuffer()
	if !ok {
		return
	}
	d := &font.Drawer{
		Dst:  back,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// DrawBootProgress renders a "[phase] NN%" banner across the top of the
// screen and flips just that strip — the one boot-splash call the phase
// orchestrator makes after each completed step.
func (f *Framebuffer) DrawBootProgress(phase string, percent int) {
	if f.width == 0 || f.height == 0 {
		return
	}
	back, ok := f.backbuffer()
	if !ok {
		return
	}
	strip := image.Rect(0, 0, f.width, bannerHeight)
	draw.Draw(back, strip, image.NewUniform(color.Black), image.Point{}, draw.Src)
	f.DrawSplashText(4, 14, fmt.Sprintf("[%-10s] %3d%%", phase, percent), color.White)
	f.Flip([]Rect{{X: 0, Y: 0, W: uint32(f.width), H: bannerHeight}})
}
