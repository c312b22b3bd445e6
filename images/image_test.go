package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLinearImage(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		wantErr bool
	}{
		{name: "Valid dimensions", width: 4, height: 3},
		{name: "Single pixel", width: 1, height: 1},
		{name: "Zero width", width: 0, height: 3, wantErr: true},
		{name: "Negative height", width: 3, height: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NewLinearImage(tt.width, tt.height)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrInvalidDimensions, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, img.R, tt.width*tt.height)
			assert.Len(t, img.G, tt.width*tt.height)
			assert.Len(t, img.B, tt.width*tt.height)
			assert.NoError(t, img.Validate())
		})
	}
}

func TestValidateDetectsChannelMismatch(t *testing.T) {
	img := MustNewLinearImage(3, 3)
	img.G = img.G[:5]

	err := img.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrSizeMismatch, errors.Cause(err))
}

func TestCloneIsDeep(t *testing.T) {
	img, err := NewUniform(2, 2, 0.1, 0.2, 0.3)
	require.NoError(t, err)

	c := img.Clone()
	c.R[0] = 0.9

	assert.Equal(t, float32(0.1), img.R[0], "original must not change")
	assert.Equal(t, img.ByteSize(), c.ByteSize())
	assert.Equal(t, int64(2*2*3*4), img.ByteSize())
}

func TestInterleaveRoundTrip(t *testing.T) {
	img := MustNewLinearImage(3, 2)
	for i := range img.R {
		img.R[i] = float32(i)
		img.G[i] = float32(i) + 0.25
		img.B[i] = float32(i) + 0.5
	}

	data := img.Interleave()
	require.Len(t, data, 18)
	assert.Equal(t, []float32{0, 0.25, 0.5, 1, 1.25, 1.5}, data[:6])

	out := MustNewLinearImage(3, 2)
	require.NoError(t, out.Deinterleave(data))
	assert.Equal(t, img.R, out.R)
	assert.Equal(t, img.G, out.G)
	assert.Equal(t, img.B, out.B)

	assert.Error(t, out.Deinterleave(data[:5]))
}

func TestLuminanceUsesBT709(t *testing.T) {
	img, err := NewUniform(1, 1, 1, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.2126, img.Luminance(0), 1e-6)

	img, err = NewUniform(1, 1, 1, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, img.Luminance(0), 1e-6)
	assert.InDelta(t, 1.0, img.LuminancePlane(nil)[0], 1e-6)
}

func TestFromImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 9, 8))
	for y := 5; y < 8; y++ {
		for x := 5; x < 9; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 30), B: 128, A: 255})
		}
	}

	lin, err := FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, 4, lin.Width)
	assert.Equal(t, 3, lin.Height)

	// Mid-grey sRGB 128 is roughly 0.216 in linear light.
	assert.InDelta(t, 0.216, lin.B[0], 0.002)

	back := lin.ToNRGBA64()
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			want := src.NRGBAAt(x+5, y+5)
			got := back.NRGBA64At(x, y)
			assert.InDelta(t, int(want.R), int(got.R>>8), 1)
			assert.InDelta(t, int(want.G), int(got.G>>8), 1)
			assert.InDelta(t, int(want.B), int(got.B>>8), 1)
		}
	}
}

func TestToNRGBA64ClampsHeadroom(t *testing.T) {
	img, err := NewUniform(1, 1, 2.5, -0.5, 1)
	require.NoError(t, err)

	c := img.ToNRGBA64().NRGBA64At(0, 0)
	assert.Equal(t, uint16(0xffff), c.R)
	assert.Equal(t, uint16(0), c.G)
	assert.Equal(t, uint16(0xffff), c.B)
}
