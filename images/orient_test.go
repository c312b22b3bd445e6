package images

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numbered returns a 3x2 image whose red channel holds the pixel index:
//
//	0 1 2
//	3 4 5
func numbered(t *testing.T) *LinearImage {
	t.Helper()
	img, err := NewLinearImage(3, 2)
	require.NoError(t, err)
	for i := range img.R {
		img.R[i] = float32(i)
	}
	return img
}

func TestOrient(t *testing.T) {
	tests := []struct {
		orientation int
		width       int
		want        []float32
	}{
		{1, 3, []float32{0, 1, 2, 3, 4, 5}},
		{2, 3, []float32{2, 1, 0, 5, 4, 3}},
		{3, 3, []float32{5, 4, 3, 2, 1, 0}},
		{4, 3, []float32{3, 4, 5, 0, 1, 2}},
		{5, 2, []float32{0, 3, 1, 4, 2, 5}},
		{6, 2, []float32{3, 0, 4, 1, 5, 2}},
		{7, 2, []float32{5, 2, 4, 1, 3, 0}},
		{8, 2, []float32{2, 5, 1, 4, 0, 3}},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.orientation), func(t *testing.T) {
			src := numbered(t)
			got, err := Orient(src, tt.orientation)
			require.NoError(t, err)
			assert.Equal(t, tt.width, got.Width)
			assert.Equal(t, 6/tt.width, got.Height)
			assert.Equal(t, tt.want, got.R)
			// Source untouched.
			assert.Equal(t, []float32{0, 1, 2, 3, 4, 5}, src.R)
		})
	}
}

func TestOrientRejectsInvalid(t *testing.T) {
	_, err := Orient(numbered(t), 0)
	assert.Error(t, err)
	_, err = Orient(numbered(t), 9)
	assert.Error(t, err)
	_, err = Orient(&LinearImage{}, 1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}
