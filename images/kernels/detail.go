package kernels

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-darkroom/images"
)

// Detail returns the detail layer in − base, where base is normally the
// bilateral-filtered input. The result may hold negative values.
func Detail(in, base *images.LinearImage) (*images.LinearImage, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !in.SameSize(base) {
		return nil, errors.Wrapf(images.ErrSizeMismatch,
			"input %dx%d, base %dx%d", in.Width, in.Height, base.Width, base.Height)
	}

	out, err := images.NewLinearImage(in.Width, in.Height)
	if err != nil {
		return nil, err
	}
	for c, src := range in.Channels() {
		b := base.Channels()[c]
		d := out.Channels()[c]
		for i := range src {
			d[i] = src[i] - b[i]
		}
	}
	return out, nil
}

// AddDetail returns base + amount·detail. With amount 1 it reconstructs the
// original image; larger amounts boost local contrast.
func AddDetail(base, detail *images.LinearImage, amount float32) (*images.LinearImage, error) {
	if !base.SameSize(detail) {
		return nil, errors.Wrap(images.ErrSizeMismatch, "base and detail")
	}
	out := base.Clone()
	for c, d := range detail.Channels() {
		o := out.Channels()[c]
		for i := range d {
			o[i] += amount * d[i]
		}
	}
	return out, nil
}
