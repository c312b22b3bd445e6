// Package encode - Display encoding of linear images: transfer curve,
// quantisation to 8 bits with optional error diffusion, and previews.
package encode

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"

	"github.com/nvr-ai/go-darkroom/images"
)

// Options controls 8-bit encoding.
type Options struct {
	// Gamma selects a pure power curve 1/Gamma. Zero selects the piecewise
	// sRGB curve.
	Gamma float32 `json:"gamma" yaml:"gamma"`
	// Dither enables Floyd–Steinberg error diffusion.
	Dither bool `json:"dither" yaml:"dither"`
}

// DefaultOptions is sRGB with dithering.
func DefaultOptions() Options {
	return Options{Dither: true}
}

// SRGBEncode applies the sRGB transfer function to a linear value in [0, 1].
func SRGBEncode(v float32) float32 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math32.Pow(v, 1.0/2.4) - 0.055
}

// GammaEncode applies v^(1/gamma).
func GammaEncode(v, gamma float32) float32 {
	if v <= 0 {
		return 0
	}
	return math32.Pow(v, 1/gamma)
}

func (o Options) encode(v float32) float32 {
	v = images.Clamp(v, 0, 1)
	if o.Gamma > 0 {
		return GammaEncode(v, o.Gamma)
	}
	return SRGBEncode(v)
}

// ToNRGBA encodes img to 8-bit display values.
//
// Arguments:
//   - img: The linear image. Values outside [0, 1] are clipped.
//   - opts: Transfer curve and dithering.
//
// Returns:
//   - *image.NRGBA: The opaque 8-bit image.
//   - error: If img is invalid.
func ToNRGBA(img *images.LinearImage, opts Options) (*image.NRGBA, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	w, h := img.Width, img.Height
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	// Encoded values scaled to [0, 255], one plane per channel.
	planes := [3][]float32{}
	for c, src := range img.Channels() {
		p := make([]float32, len(src))
		for i, v := range src {
			p[i] = opts.encode(v) * 255
		}
		planes[c] = p
	}

	if opts.Dither {
		// Error diffusion is row-serial; each channel is independent.
		images.ParallelN(3, 3, func(start, end int) {
			for c := start; c < end; c++ {
				diffuse(planes[c], w, h)
			}
		})
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			dst.SetNRGBA(x, y, color.NRGBA{
				R: quantize(planes[0][i]),
				G: quantize(planes[1][i]),
				B: quantize(planes[2][i]),
				A: 0xff,
			})
		}
	}
	return dst, nil
}

func quantize(v float32) uint8 {
	return uint8(images.Clamp(math32.Round(v), 0, 255))
}

// diffuse runs Floyd–Steinberg over one plane in place, leaving each sample
// on an integer level.
func diffuse(p []float32, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			old := p[i]
			q := images.Clamp(math32.Round(old), 0, 255)
			p[i] = q
			e := old - q
			if e == 0 {
				continue
			}
			if x+1 < w {
				p[i+1] += e * 7 / 16
			}
			if y+1 < h {
				if x > 0 {
					p[i+w-1] += e * 3 / 16
				}
				p[i+w] += e * 5 / 16
				if x+1 < w {
					p[i+w+1] += e * 1 / 16
				}
			}
		}
	}
}

// Preview returns a thumbnail that fits in maxSize×maxSize, keeping the aspect
// ratio. Images already small enough are returned unchanged.
func Preview(img image.Image, maxSize uint) image.Image {
	return resize.Thumbnail(maxSize, maxSize, img, resize.Lanczos3)
}
