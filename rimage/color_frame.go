package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// BytesPerColorPixel is the size of one BGRA8 pixel.
const BytesPerColorPixel = 4

// ColorFrame is a row-major raster of 8-bit BGRA pixels, the channel order color sensors
// deliver. It implements image.Image so frames can be sampled and encoded directly.
type ColorFrame struct {
	width  int
	height int

	pix []byte
}

// NewColorFrame allocates a zeroed frame of the given size.
func NewColorFrame(width, height int) *ColorFrame {
	return &ColorFrame{width: width, height: height, pix: make([]byte, width*height*BytesPerColorPixel)}
}

// ColorFrameFromImage converts any image into BGRA order.
func ColorFrameFromImage(img image.Image) *ColorFrame {
	b := img.Bounds()
	cf := NewColorFrame(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			cf.SetNRGBA(x, y, c)
		}
	}
	return cf
}

// Width returns the horizontal size of the frame.
func (cf *ColorFrame) Width() int { return cf.width }

// Height returns the vertical size of the frame.
func (cf *ColorFrame) Height() int { return cf.height }

// Pix exposes the BGRA bytes. It aliases the frame's storage.
func (cf *ColorFrame) Pix() []byte { return cf.pix }

// CopyFrom overwrites the frame with BGRA bytes from src.
func (cf *ColorFrame) CopyFrom(src []byte) error {
	if len(src) < len(cf.pix) {
		return errors.Errorf("color source too short: got %d bytes, need %d", len(src), len(cf.pix))
	}
	copy(cf.pix, src)
	return nil
}

// CopyTo copies the frame into dst, which must be exactly the frame's size.
func (cf *ColorFrame) CopyTo(dst []byte) error {
	if len(dst) != len(cf.pix) {
		return errors.Errorf("color destination holds %d bytes, frame has %d", len(dst), len(cf.pix))
	}
	copy(dst, cf.pix)
	return nil
}

// SetNRGBA stores c at (x, y) swizzled into BGRA order.
func (cf *ColorFrame) SetNRGBA(x, y int, c color.NRGBA) {
	i := (y*cf.width + x) * BytesPerColorPixel
	cf.pix[i+0] = c.B
	cf.pix[i+1] = c.G
	cf.pix[i+2] = c.R
	cf.pix[i+3] = c.A
}

// NRGBAAt returns the pixel at (x, y) in RGBA order.
func (cf *ColorFrame) NRGBAAt(x, y int) color.NRGBA {
	if !(image.Point{x, y}.In(cf.Bounds())) {
		return color.NRGBA{}
	}
	i := (y*cf.width + x) * BytesPerColorPixel
	return color.NRGBA{R: cf.pix[i+2], G: cf.pix[i+1], B: cf.pix[i+0], A: cf.pix[i+3]}
}

// ColorModel implements image.Image.
func (cf *ColorFrame) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements image.Image.
func (cf *ColorFrame) Bounds() image.Rectangle { return image.Rect(0, 0, cf.width, cf.height) }

// At implements image.Image.
func (cf *ColorFrame) At(x, y int) color.Color { return cf.NRGBAAt(x, y) }

// SampleNormalized returns the nearest pixel to the normalized coordinate (u, v). Coordinates
// outside [0,1] or non-finite values yield ok == false.
func (cf *ColorFrame) SampleNormalized(u, v float32) (color.NRGBA, bool) {
	if !(u >= 0 && u <= 1 && v >= 0 && v <= 1) {
		return color.NRGBA{}, false
	}
	x := int(u * float32(cf.width))
	y := int(v * float32(cf.height))
	if x >= cf.width {
		x = cf.width - 1
	}
	if y >= cf.height {
		y = cf.height - 1
	}
	return cf.NRGBAAt(x, y), true
}
