package util

import (
	"bytes"
	"image"
	"image/color"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-darkroom/images"
)

// HDR exposes a linear image as an hdr.Image so it can be written as Radiance
// RGBE without clipping highlight headroom.
func HDR(m *images.LinearImage) hdr.Image {
	return hdrImage{m}
}

type hdrImage struct {
	m *images.LinearImage
}

func (h hdrImage) ColorModel() color.Model { return hdrcolor.RGBModel }
func (h hdrImage) Bounds() image.Rectangle { return image.Rect(0, 0, h.m.Width, h.m.Height) }
func (h hdrImage) At(x, y int) color.Color { return h.HDRAt(x, y) }
func (h hdrImage) Size() int               { return h.m.Pixels() }

func (h hdrImage) HDRAt(x, y int) hdrcolor.Color {
	i := y*h.m.Width + x
	return hdrcolor.RGB{float64(h.m.R[i]), float64(h.m.G[i]), float64(h.m.B[i])}
}

func isRadiance(data []byte) bool {
	return bytes.HasPrefix(data, []byte("#?RADIANCE")) || bytes.HasPrefix(data, []byte("#?RGBE"))
}

// decodeRadiance reads an RGBE file straight into linear light.
func decodeRadiance(data []byte) (*images.LinearImage, error) {
	img, err := rgbe.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode hdr")
	}
	src, ok := img.(hdr.Image)
	if !ok {
		return nil, errors.Errorf("decode hdr: unexpected image type %T", img)
	}

	b := src.Bounds()
	dst, err := images.NewLinearImage(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			r, g, bl, _ := src.HDRAt(b.Min.X+x, b.Min.Y+y).HDRRGBA()
			i := y*dst.Width + x
			dst.R[i] = float32(r)
			dst.G[i] = float32(g)
			dst.B[i] = float32(bl)
		}
	}
	return dst, nil
}
