package frames

import (
	"image"

	"gateman.io/infrastructure/biometric/types"
)

// ImageBuffer adapts any image.Image to types.FrameBuffer.
// *image.RGBA and *image.NRGBA are read directly from their pixel slices.
type ImageBuffer struct {
	img    image.Image
	bounds image.Rectangle
	rgba   *image.RGBA
	nrgba  *image.NRGBA
}

func NewImageBuffer(img image.Image) *ImageBuffer {
	b := &ImageBuffer{img: img, bounds: img.Bounds()}
	switch v := img.(type) {
	case *image.RGBA:
		b.rgba = v
	case *image.NRGBA:
		b.nrgba = v
	}
	return b
}

func (b *ImageBuffer) Width() int  { return b.bounds.Dx() }
func (b *ImageBuffer) Height() int { return b.bounds.Dy() }

func (b *ImageBuffer) Pixel(x, y int) types.RGB {
	x = clamp(x, 0, b.bounds.Dx()-1) + b.bounds.Min.X
	y = clamp(y, 0, b.bounds.Dy()-1) + b.bounds.Min.Y
	switch {
	case b.rgba != nil:
		i := b.rgba.PixOffset(x, y)
		return types.RGB{R: b.rgba.Pix[i], G: b.rgba.Pix[i+1], B: b.rgba.Pix[i+2]}
	case b.nrgba != nil:
		i := b.nrgba.PixOffset(x, y)
		return types.RGB{R: b.nrgba.Pix[i], G: b.nrgba.Pix[i+1], B: b.nrgba.Pix[i+2]}
	}
	r, g, bl, _ := b.img.At(x, y).RGBA()
	return types.RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
