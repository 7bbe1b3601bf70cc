// Command imageconvert rasterizes a PNG/JPEG/BMP asset into the raw pixel
// blob cmd/compositor embeds for its wallpaper and window-chrome icons: a
// width/height header followed by pixel data in one of the same four wire
// formats internal/fbuf.Format enumerates for the hardware framebuffer
// itself, so the bytes this tool writes can be blitted straight into a
// surface without a runtime conversion pass. Kept from the teacher nearly
// as-is; the only changes are the output format flag (the teacher always
// wrote ARGB8888, this kernel's formats are the Rgb888/Rgba8888/Bgr888/
// Bgra8888 set internal/fbuf decodes from Limine) and the golang.org/x/image/bmp
// decoder registration, for wallpaper assets shipped as BMP.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
)

// pixelFormat mirrors internal/fbuf.Format's wire layouts, duplicated here
// rather than imported so this standalone build-time tool keeps no
// dependency on the kernel tree it feeds.
type pixelFormat int

const (
	formatRgba8888 pixelFormat = iota
	formatBgra8888
	formatRgb888
	formatBgr888
)

func parsePixelFormat(s string) (pixelFormat, error) {
	switch s {
	case "rgba8888":
		return formatRgba8888, nil
	case "bgra8888":
		return formatBgra8888, nil
	case "rgb888":
		return formatRgb888, nil
	case "bgr888":
		return formatBgr888, nil
	default:
		return 0, fmt.Errorf("unknown format %q (want rgba8888, bgra8888, rgb888, or bgr888)", s)
	}
}

func (f pixelFormat) bytesPerPixel() int {
	switch f {
	case formatRgb888, formatBgr888:
		return 3
	default:
		return 4
	}
}

// appendPixel packs one pixel's 8-bit channels into buf according to f,
// matching the byte order internal/fbuf's detectFormat assigns each name.
func (f pixelFormat) appendPixel(buf []byte, r, g, b, a uint8) []byte {
	switch f {
	case formatRgba8888:
		return append(buf, r, g, b, a)
	case formatBgra8888:
		return append(buf, b, g, r, a)
	case formatRgb888:
		return append(buf, r, g, b)
	case formatBgr888:
		return append(buf, b, g, r)
	default:
		return buf
	}
}

func main() {
	formatName := flag.String("format", "rgba8888", "output pixel format: rgba8888, bgra8888, rgb888, or bgr888")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: imageconvert [-format fmt] <input-image> <output-binary>\n")
		fmt.Fprintf(os.Stderr, "Converts a PNG/JPEG/BMP image into a raw framebuffer asset.\n")
		fmt.Fprintf(os.Stderr, "Output layout:\n")
		fmt.Fprintf(os.Stderr, "  4 bytes: width (uint32 little-endian)\n")
		fmt.Fprintf(os.Stderr, "  4 bytes: height (uint32 little-endian)\n")
		fmt.Fprintf(os.Stderr, "  width*height*bytesPerPixel bytes: pixel data in -format\n")
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	format, err := parsePixelFormat(*formatName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	inputPath := flag.Arg(0)
	outputPath := flag.Arg(1)

	file, err := os.Open(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening image: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding image: %v\n", err)
		os.Exit(1)
	}

	bounds := img.Bounds()
	width := uint32(bounds.Dx())
	height := uint32(bounds.Dy())

	fmt.Printf("Image size: %d x %d, format %s\n", width, height, *formatName)

	outFile, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer outFile.Close()
	w := bufio.NewWriter(outFile)

	if err := binary.Write(w, binary.LittleEndian, width); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing width: %v\n", err)
		os.Exit(1)
	}
	if err := binary.Write(w, binary.LittleEndian, height); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing height: %v\n", err)
		os.Exit(1)
	}

	row := make([]byte, 0, int(width)*format.bytesPerPixel())
	pixelCount := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row = row[:0]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			row = format.appendPixel(row, uint8(r/257), uint8(g/257), uint8(b/257), uint8(a/257))
			pixelCount++
		}
		if _, err := w.Write(row); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing pixel data: %v\n", err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d pixels to %s\n", pixelCount, outputPath)
	fileInfo, _ := os.Stat(outputPath)
	fmt.Printf("Output file size: %d bytes\n", fileInfo.Size())
}
