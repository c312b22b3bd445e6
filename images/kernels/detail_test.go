package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-darkroom/images"
)

func TestDetailReconstructsInput(t *testing.T) {
	in := genLinear(12, 10, 11)
	base, err := Standard(in, Params{SpatialSigma: 2, RangeSigma: 0.2}, Options{})
	require.NoError(t, err)

	detail, err := Detail(in, base)
	require.NoError(t, err)

	rebuilt, err := AddDetail(base, detail, 1)
	require.NoError(t, err)
	for i := range in.R {
		assert.InDelta(t, in.R[i], rebuilt.R[i], 1e-6)
		assert.InDelta(t, in.G[i], rebuilt.G[i], 1e-6)
		assert.InDelta(t, in.B[i], rebuilt.B[i], 1e-6)
	}
}

func TestDetailOfUniformImageIsZero(t *testing.T) {
	in, err := images.NewUniform(6, 6, 0.5, 0.5, 0.5)
	require.NoError(t, err)
	base, err := Standard(in, Params{SpatialSigma: 1, RangeSigma: 0.1}, Options{})
	require.NoError(t, err)

	detail, err := Detail(in, base)
	require.NoError(t, err)
	for _, v := range detail.R {
		assert.Equal(t, float32(0), v)
	}
}

func TestDetailSizeMismatch(t *testing.T) {
	_, err := Detail(genLinear(4, 4, 1), genLinear(4, 5, 1))
	assert.Error(t, err)
	_, err = AddDetail(genLinear(4, 4, 1), genLinear(4, 5, 1), 1)
	assert.Error(t, err)
}
