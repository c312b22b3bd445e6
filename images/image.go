// Package images - Linear-light image model shared by every filter stage.
package images

import (
	"unsafe"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidDimensions is returned when an image is created or validated with
	// a non-positive width or height.
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	// ErrSizeMismatch is returned when two images that must share dimensions do not.
	ErrSizeMismatch = errors.New("image size mismatch")
)

// BT.709 luma coefficients.
const (
	LumaR = 0.2126
	LumaG = 0.7152
	LumaB = 0.0722
)

// LinearImage is a planar, linear-light RGB image with float32 channels.
//
// Values are nominally in [0, 1] but are never clamped, so highlight headroom
// produced by earlier stages survives filtering. All three channels always hold
// exactly Width*Height samples in row-major order.
type LinearImage struct {
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
	// R is the red channel.
	R []float32 `json:"-" yaml:"-"`
	// G is the green channel.
	G []float32 `json:"-" yaml:"-"`
	// B is the blue channel.
	B []float32 `json:"-" yaml:"-"`
}

// NewLinearImage allocates a zeroed image of the given size.
//
// Arguments:
//   - width: The width in pixels. Must be > 0.
//   - height: The height in pixels. Must be > 0.
//
// Returns:
//   - *LinearImage: The allocated image.
//   - error: ErrInvalidDimensions if either dimension is not positive.
func NewLinearImage(width, height int) (*LinearImage, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "width=%d, height=%d", width, height)
	}

	n := width * height
	return &LinearImage{
		Width:  width,
		Height: height,
		R:      make([]float32, n),
		G:      make([]float32, n),
		B:      make([]float32, n),
	}, nil
}

// MustNewLinearImage is like NewLinearImage but panics on invalid dimensions.
func MustNewLinearImage(width, height int) *LinearImage {
	img, err := NewLinearImage(width, height)
	if err != nil {
		panic(err)
	}
	return img
}

// NewUniform returns an image where every pixel has the given colour.
func NewUniform(width, height int, r, g, b float32) (*LinearImage, error) {
	img, err := NewLinearImage(width, height)
	if err != nil {
		return nil, err
	}
	for i := range img.R {
		img.R[i] = r
		img.G[i] = g
		img.B[i] = b
	}
	return img, nil
}

// Pixels returns Width*Height.
func (m *LinearImage) Pixels() int {
	return m.Width * m.Height
}

// ByteSize is the memory held by the three channels.
func (m *LinearImage) ByteSize() int64 {
	return int64(m.Pixels()) * 3 * int64(unsafe.Sizeof(float32(0)))
}

// Validate checks the channel length invariant.
//
// Returns:
//   - error: ErrInvalidDimensions for a non-positive size, or a wrapped
//     ErrSizeMismatch if any channel length disagrees with Width*Height.
func (m *LinearImage) Validate() error {
	if m == nil {
		return errors.Wrap(ErrInvalidDimensions, "image is nil")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return errors.Wrapf(ErrInvalidDimensions, "width=%d, height=%d", m.Width, m.Height)
	}
	n := m.Pixels()
	if len(m.R) != n || len(m.G) != n || len(m.B) != n {
		return errors.Wrapf(ErrSizeMismatch,
			"channel lengths r=%d g=%d b=%d, want %d", len(m.R), len(m.G), len(m.B), n)
	}
	return nil
}

// SameSize reports whether both images have identical dimensions.
func (m *LinearImage) SameSize(o *LinearImage) bool {
	return m != nil && o != nil && m.Width == o.Width && m.Height == o.Height
}

// Clone returns a deep copy.
func (m *LinearImage) Clone() *LinearImage {
	c := &LinearImage{
		Width:  m.Width,
		Height: m.Height,
		R:      make([]float32, len(m.R)),
		G:      make([]float32, len(m.G)),
		B:      make([]float32, len(m.B)),
	}
	copy(c.R, m.R)
	copy(c.G, m.G)
	copy(c.B, m.B)
	return c
}

// CopyFrom overwrites m with the pixels of src. Both must share dimensions.
func (m *LinearImage) CopyFrom(src *LinearImage) error {
	if !m.SameSize(src) {
		return errors.Wrapf(ErrSizeMismatch, "dst %dx%d, src %dx%d", m.Width, m.Height, src.Width, src.Height)
	}
	copy(m.R, src.R)
	copy(m.G, src.G)
	copy(m.B, src.B)
	return nil
}

// Luminance returns the BT.709 weighted luminance of pixel i.
func (m *LinearImage) Luminance(i int) float32 {
	return LumaR*m.R[i] + LumaG*m.G[i] + LumaB*m.B[i]
}

// LuminancePlane computes the luminance of every pixel into dst, allocating
// when dst is too small.
func (m *LinearImage) LuminancePlane(dst []float32) []float32 {
	n := m.Pixels()
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dst[i] = m.Luminance(i)
	}
	return dst
}

// Interleave packs the planar channels as RGBRGB... for device upload.
func (m *LinearImage) Interleave() []float32 {
	n := m.Pixels()
	out := make([]float32, n*3)
	for i := 0; i < n; i++ {
		out[i*3+0] = m.R[i]
		out[i*3+1] = m.G[i]
		out[i*3+2] = m.B[i]
	}
	return out
}

// Deinterleave unpacks RGBRGB... data into the planar channels.
//
// Arguments:
//   - data: Interleaved samples, exactly Width*Height*3 long.
//
// Returns:
//   - error: ErrSizeMismatch when data has the wrong length.
func (m *LinearImage) Deinterleave(data []float32) error {
	n := m.Pixels()
	if len(data) != n*3 {
		return errors.Wrapf(ErrSizeMismatch, "interleaved length %d, want %d", len(data), n*3)
	}
	for i := 0; i < n; i++ {
		m.R[i] = data[i*3+0]
		m.G[i] = data[i*3+1]
		m.B[i] = data[i*3+2]
	}
	return nil
}

// Channels returns the three planes in R, G, B order.
func (m *LinearImage) Channels() [3][]float32 {
	return [3][]float32{m.R, m.G, m.B}
}
