// Package images - Conversion between display-referred Go images and linear light.
package images

import (
	"image"
	"image/color"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var (
	srgbToLinearOnce sync.Once
	srgbToLinearLUT  []float32
)

// srgbToLinear16 returns the decoding table indexed by a 16-bit sRGB sample.
func srgbToLinear16() []float32 {
	srgbToLinearOnce.Do(func() {
		srgbToLinearLUT = make([]float32, 1<<16)
		for i := range srgbToLinearLUT {
			v := float64(i) / 65535
			r, _, _ := colorful.Color{R: v, G: v, B: v}.LinearRgb()
			srgbToLinearLUT[i] = float32(r)
		}
	})
	return srgbToLinearLUT
}

// FromImage decodes an sRGB-encoded image into linear light. Alpha is
// discarded; premultiplied sources are un-premultiplied first.
//
// Arguments:
//   - src: Any Go image, typically decoded from PNG, JPEG, WebP or TIFF.
//
// Returns:
//   - *LinearImage: The linear-light planar image.
//   - error: ErrInvalidDimensions for an empty source.
func FromImage(src image.Image) (*LinearImage, error) {
	b := src.Bounds()
	dst, err := NewLinearImage(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	lut := srgbToLinear16()

	Parallel(dst.Height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < dst.Width; x++ {
				c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				i := y*dst.Width + x
				dst.R[i] = lut[c.R]
				dst.G[i] = lut[c.G]
				dst.B[i] = lut[c.B]
			}
		}
	})

	return dst, nil
}

// ToNRGBA64 encodes the linear image back to 16-bit sRGB, clamping to [0, 1].
// Headroom above 1 is clipped here and only here.
func (m *LinearImage) ToNRGBA64() *image.NRGBA64 {
	dst := image.NewNRGBA64(image.Rect(0, 0, m.Width, m.Height))

	Parallel(m.Height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < m.Width; x++ {
				i := y*m.Width + x
				c := colorful.LinearRgb(
					float64(Clamp(m.R[i], 0, 1)),
					float64(Clamp(m.G[i], 0, 1)),
					float64(Clamp(m.B[i], 0, 1)),
				).Clamped()
				dst.SetNRGBA64(x, y, color.NRGBA64{
					R: uint16(c.R*65535 + 0.5),
					G: uint16(c.G*65535 + 0.5),
					B: uint16(c.B*65535 + 0.5),
					A: 0xffff,
				})
			}
		}
	})

	return dst
}
