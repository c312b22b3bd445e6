//go:build !nogpu

package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
)

func TestNewContextIsLazy(t *testing.T) {
	c := NewContext(Config{})
	assert.Equal(t, StateUninitialized, c.State())
	assert.Empty(t, c.AdapterName())
}

func TestFilterRejectsInvalidArgumentsBeforeInit(t *testing.T) {
	c := NewContext(Config{})
	in := images.MustNewLinearImage(4, 4)

	err := c.Filter(in, images.MustNewLinearImage(4, 4), kernels.Params{SpatialSigma: 0, RangeSigma: 0.1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, kernels.ErrInvalidParameters))

	err = c.Filter(in, images.MustNewLinearImage(2, 4), kernels.Params{SpatialSigma: 1, RangeSigma: 0.1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, images.ErrSizeMismatch))

	assert.Equal(t, StateUninitialized, c.State())
}

func TestShutdownIsTerminal(t *testing.T) {
	c := NewContext(Config{})
	c.Shutdown()
	assert.Equal(t, StateUnavailable, c.State())
	assert.False(t, c.Available())

	in := images.MustNewLinearImage(4, 4)
	err := c.Filter(in, images.MustNewLinearImage(4, 4), kernels.Params{SpatialSigma: 1, RangeSigma: 0.1})
	assert.ErrorIs(t, err, ErrUnavailable)

	// Shutting down twice is harmless.
	c.Shutdown()
	assert.Equal(t, StateUnavailable, c.State())
}
