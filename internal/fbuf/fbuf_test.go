package fbuf

import (
	"image/color"
	"testing"
	"unsafe"

	"github.com/sloplabs/slopos/internal/limine"
)

func TestDetectFormatBochsBGRX(t *testing.T) {
	if got := detectFormat(32, 16, 8, 0); got != FormatBgra8888 {
		t.Fatalf("detectFormat(32bpp BGRX) = %v, want Bgra8888", got)
	}
}

func TestDetectFormatRGBA(t *testing.T) {
	if got := detectFormat(32, 0, 8, 16); got != FormatRgba8888 {
		t.Fatalf("detectFormat(32bpp RGBA) = %v, want Rgba8888", got)
	}
}

func TestDetectFormat24Bit(t *testing.T) {
	if got := detectFormat(24, 16, 8, 0); got != FormatBgr888 {
		t.Fatalf("detectFormat(24bpp BGR) = %v, want Bgr888", got)
	}
	if got := detectFormat(24, 0, 8, 16); got != FormatRgb888 {
		t.Fatalf("detectFormat(24bpp RGB) = %v, want Rgb888", got)
	}
}

func TestDetectFormatUnknownShiftsReturnUnknown(t *testing.T) {
	if got := detectFormat(16, 11, 5, 0); got != FormatUnknown {
		t.Fatalf("detectFormat(16bpp) = %v, want Unknown", got)
	}
}

func TestHwImageSetAtRoundTripBgra8888(t *testing.T) {
	fb := NewForTest(4, 4, FormatBgra8888)
	fb.hw.Set(1, 1, color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xFF})
	got := fb.hw.At(1, 1).(color.RGBA)
	if got.R != 0x11 || got.G != 0x22 || got.B != 0x33 {
		t.Fatalf("At(Set(r,g,b)) = %+v, want R=11 G=22 B=33", got)
	}
	off := fb.hw.offset(1, 1)
	if fb.hw.pix[off] != 0x33 || fb.hw.pix[off+2] != 0x11 {
		t.Fatalf("Bgra8888 byte order wrong: pix[off:off+4] = %v", fb.hw.pix[off:off+4])
	}
}

func TestHwImageSetAtRoundTripRgb888(t *testing.T) {
	fb := NewForTest(2, 2, FormatRgb888)
	fb.hw.Set(0, 0, color.RGBA{R: 0xAA, G: 0xBB, B: 0xCC, A: 0xFF})
	off := fb.hw.offset(0, 0)
	if fb.hw.pix[off] != 0xAA || fb.hw.pix[off+1] != 0xBB || fb.hw.pix[off+2] != 0xCC {
		t.Fatalf("Rgb888 byte order wrong: pix = %v", fb.hw.pix[off:off+3])
	}
}

func TestHwImageOutOfBoundsIsNoop(t *testing.T) {
	fb := NewForTest(2, 2, FormatRgb888)
	fb.hw.Set(99, 99, color.RGBA{R: 1, G: 2, B: 3, A: 0xFF})
	for _, b := range fb.hw.pix {
		if b != 0 {
			t.Fatalf("out-of-bounds Set wrote into buffer: %v", fb.hw.pix)
		}
	}
}

func TestFlipCopiesBackbufferIntoHardwareBuffer(t *testing.T) {
	fb := NewForTest(8, 8, FormatBgra8888)
	fb.GGContext().SetRGB(1, 0, 0)
	fb.GGContext().Clear()
	fb.Flip(nil)

	off := fb.hw.offset(3, 3)
	if fb.hw.pix[off+2] != 0xFF { // red channel lands at +2 in Bgra8888
		t.Fatalf("Flip(full red) center pixel = %v, want red channel 0xFF", fb.hw.pix[off:off+4])
	}
}

func TestFlipRestrictsToDamageRect(t *testing.T) {
	fb := NewForTest(8, 8, FormatBgra8888)
	fb.GGContext().SetRGB(0, 0, 0)
	fb.GGContext().Clear()
	fb.Flip(nil)

	fb.GGContext().SetRGB(0, 1, 0)
	fb.GGContext().DrawRectangle(0, 0, 2, 2)
	fb.GGContext().Fill()
	fb.Flip([]Rect{{X: 0, Y: 0, W: 2, H: 2}})

	insideOff := fb.hw.offset(1, 1)
	if fb.hw.pix[insideOff+1] != 0xFF { // green channel
		t.Fatalf("damage rect pixel not updated: %v", fb.hw.pix[insideOff:insideOff+4])
	}
	outsideOff := fb.hw.offset(6, 6)
	if fb.hw.pix[outsideOff+1] != 0 {
		t.Fatalf("pixel outside damage rect was touched: %v", fb.hw.pix[outsideOff:outsideOff+4])
	}
}

func TestNewFromLimineMapsAddressThroughToVirt(t *testing.T) {
	backing := make([]byte, 4*16)
	resp := &limine.FramebufferResponse{
		Address: 0x1000,
		Width:   4, Height: 4, Pitch: 16,
		BPP: 32, RedMaskShift: 16, GreenMaskShift: 8, BlueMaskShift: 0,
	}
	fb := NewFromLimine(resp, func(uint64) unsafe.Pointer { return unsafe.Pointer(&backing[0]) })
	if fb.Width() != 4 || fb.Height() != 4 {
		t.Fatalf("Width/Height = %d/%d, want 4/4", fb.Width(), fb.Height())
	}
	if fb.Format() != FormatBgra8888 {
		t.Fatalf("Format = %v, want Bgra8888", fb.Format())
	}
	fb.GGContext().SetRGB(1, 1, 1)
	fb.GGContext().Clear()
	fb.Flip(nil)
	for _, b := range backing {
		if b != 0xFF {
			t.Fatalf("Flip didn't write through the toVirt-mapped backing slice: %v", backing)
		}
	}
}

func TestDrawBootProgressFlipsBannerStrip(t *testing.T) {
	fb := NewForTest(40, 20, FormatBgra8888)
	fb.DrawBootProgress("Drivers", 42)

	blank := true
	for _, b := range fb.hw.pix[:fb.width*fb.format.BytesPerPixel()*bannerHeight] {
		if b != 0 {
			blank = false
			break
		}
	}
	if blank {
		t.Fatalf("DrawBootProgress left the banner strip untouched")
	}
}
