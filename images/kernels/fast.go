package kernels

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-darkroom/images"
)

// DownsampleFactor maps a spatial sigma to the integer reduction used by Fast.
//
//	σs ≤ 4 → 1, ≤ 8 → 2, ≤ 16 → 4, ≤ 32 → 8, otherwise 16
func DownsampleFactor(spatialSigma float32) int {
	switch {
	case spatialSigma <= 4:
		return 1
	case spatialSigma <= 8:
		return 2
	case spatialSigma <= 16:
		return 4
	case spatialSigma <= 32:
		return 8
	default:
		return 16
	}
}

// Fast approximates Standard for large spatial sigmas by filtering a box
// downsampled copy with σs/factor and bilinearly upsampling the result.
//
// The output is not bit-identical to Standard. Because σs scales linearly with
// resolution, the approximation only discards detail that a wide spatial
// kernel would smooth away anyway.
//
// Arguments:
//   - in: The source image.
//   - p: The filter sigmas at full resolution.
//   - opts: Worker pool and buffer pool used for the reduced-size pass.
//
// Returns:
//   - *images.LinearImage: The filtered image at the input's dimensions.
//   - error: If the parameters or the image are invalid.
func Fast(in *images.LinearImage, p Params, opts Options) (*images.LinearImage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	factor := DownsampleFactor(p.SpatialSigma)
	if factor == 1 {
		return Standard(in, p, opts)
	}

	small, err := images.BoxDownsample(in, factor)
	if err != nil {
		return nil, errors.Wrap(err, "downsample")
	}

	reduced := Params{
		SpatialSigma: p.SpatialSigma / float32(factor),
		RangeSigma:   p.RangeSigma,
	}
	filtered, err := opts.Buffers.Get(small.Width, small.Height)
	if err != nil {
		return nil, err
	}
	defer opts.Buffers.Put(filtered)

	if err := StandardInto(small, filtered, reduced, opts); err != nil {
		return nil, errors.Wrap(err, "filter reduced image")
	}

	out, err := images.BilinearUpsample(filtered, in.Width, in.Height)
	if err != nil {
		return nil, errors.Wrap(err, "upsample")
	}
	return out, nil
}

// FastInto is Fast writing into a caller-owned output of the input's size.
func FastInto(in, out *images.LinearImage, p Params, opts Options) error {
	if !in.SameSize(out) {
		return errors.Wrap(images.ErrSizeMismatch, "fast filter output")
	}
	res, err := Fast(in, p, opts)
	if err != nil {
		return err
	}
	return out.CopyFrom(res)
}
