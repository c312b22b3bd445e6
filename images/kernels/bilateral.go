// Package kernels - Edge-preserving bilateral filters over linear images.
//
// Every filter in this package honours the same contract. For each pixel p the
// output is the weighted mean of the neighbours q within radius ceil(3·σs),
// where the weight is the product of a spatial Gaussian on the pixel distance
// and a range Gaussian on the BT.709 luminance difference:
//
//	w(p, q) = exp(-|p-q|² / 2σs²) · exp(-(Y(q)-Y(p))² / 2σr²)
//
// Neighbours outside the image are skipped rather than clamped or mirrored, so
// border pixels average fewer samples. The centre pixel always contributes a
// weight of exactly 1, which keeps the normaliser strictly positive.
package kernels

import (
	"math"
	"runtime"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-darkroom/images"
)

// ErrInvalidParameters is returned for non-positive or non-finite sigmas.
var ErrInvalidParameters = errors.New("invalid bilateral filter parameters")

// ErrAliased is returned when the output image shares storage with the input.
var ErrAliased = errors.New("output image aliases input image")

// MaxDefaultWorkers caps the default CPU band count.
const MaxDefaultWorkers = 4

// Params holds the two bilateral sigmas.
type Params struct {
	// SpatialSigma is the spatial Gaussian deviation in pixels.
	SpatialSigma float32 `json:"spatial_sigma" yaml:"spatial_sigma"`
	// RangeSigma is the range Gaussian deviation in normalised luminance units.
	RangeSigma float32 `json:"range_sigma" yaml:"range_sigma"`
}

// Validate rejects sigmas that are not finite and strictly positive.
func (p Params) Validate() error {
	if !validSigma(p.SpatialSigma) || !validSigma(p.RangeSigma) {
		return errors.Wrapf(ErrInvalidParameters,
			"spatial_sigma=%v range_sigma=%v", p.SpatialSigma, p.RangeSigma)
	}
	return nil
}

func validSigma(s float32) bool {
	return s > 0 && !math32.IsInf(s, 0) && !math32.IsNaN(s)
}

// Radius is the neighbourhood half-width, ceil(3·σs).
func (p Params) Radius() int {
	return int(math32.Ceil(3 * p.SpatialSigma))
}

// Options configures how a CPU filter executes.
type Options struct {
	// Workers partitions rows into contiguous bands, one per worker. When nil
	// the filter runs as a single band on the calling goroutine.
	Workers *workerpool.Pool
	// Buffers lets callers reuse intermediate images between calls.
	Buffers *Pool
}

// DefaultWorkers is min(4, NumCPU).
func DefaultWorkers() int {
	return min(MaxDefaultWorkers, runtime.NumCPU())
}

// NewWorkerPool creates a row-band worker pool. Non-positive sizes fall back
// to DefaultWorkers.
func NewWorkerPool(size int) *workerpool.Pool {
	if size <= 0 {
		size = DefaultWorkers()
	}
	return workerpool.New(size)
}

// Standard applies the direct O(r²) bilateral filter and returns a new image.
//
// Arguments:
//   - in: The source image. It is only read.
//   - p: The filter sigmas.
//   - opts: Worker pool and buffer pool.
//
// Returns:
//   - *images.LinearImage: The filtered image.
//   - error: If the parameters or the image are invalid.
func Standard(in *images.LinearImage, p Params, opts Options) (*images.LinearImage, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	out, err := opts.Buffers.Get(in.Width, in.Height)
	if err != nil {
		return nil, err
	}
	if err := StandardInto(in, out, p, opts); err != nil {
		opts.Buffers.Put(out)
		return nil, err
	}
	return out, nil
}

// StandardInto is Standard writing into a caller-owned output of the same size.
// Every output pixel is overwritten.
func StandardInto(in, out *images.LinearImage, p Params, opts Options) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return errors.Wrap(err, "input")
	}
	if err := out.Validate(); err != nil {
		return errors.Wrap(err, "output")
	}
	if !in.SameSize(out) {
		return errors.Wrapf(images.ErrSizeMismatch,
			"input %dx%d, output %dx%d", in.Width, in.Height, out.Width, out.Height)
	}
	if aliased(in, out) {
		return ErrAliased
	}

	k := newKernel(in, p)
	if opts.Workers == nil {
		k.rows(out, 0, in.Height)
		return nil
	}
	opts.Workers.ParallelFor(in.Height, func(start, end int) {
		k.rows(out, start, end)
	})
	return nil
}

func aliased(a, b *images.LinearImage) bool {
	if a == b {
		return true
	}
	for _, pa := range a.Channels() {
		for _, pb := range b.Channels() {
			if &pa[0] == &pb[0] {
				return true
			}
		}
	}
	return false
}

// kernel holds the per-call read-only state shared by every row band.
type kernel struct {
	in       *images.LinearImage
	lum      []float32
	spatial  []float32
	radius   int
	invRange float32
}

func newKernel(in *images.LinearImage, p Params) *kernel {
	r := p.Radius()
	size := 2*r + 1

	// Spatial weights only depend on the offset, so tabulate them once.
	spatial := make([]float32, size*size)
	invSpatial := finiteInverse(2 * p.SpatialSigma * p.SpatialSigma)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d2 := float32(dx*dx + dy*dy)
			spatial[(dy+r)*size+dx+r] = math32.Exp(-d2 * invSpatial)
		}
	}
	spatial[r*size+r] = 1

	invRange := finiteInverse(2 * p.RangeSigma * p.RangeSigma)

	return &kernel{
		in:       in,
		lum:      in.LuminancePlane(nil),
		spatial:  spatial,
		radius:   r,
		invRange: invRange,
	}
}

// finiteInverse returns 1/v, saturating instead of overflowing when tiny
// sigmas square to zero.
func finiteInverse(v float32) float32 {
	inv := 1 / v
	if math32.IsInf(inv, 0) {
		return math.MaxFloat32
	}
	return inv
}

// rows filters rows [y0, y1) into out.
func (k *kernel) rows(out *images.LinearImage, y0, y1 int) {
	in := k.in
	w, h := in.Width, in.Height
	r := k.radius
	size := 2*r + 1

	for y := y0; y < y1; y++ {
		dyMin := max(-r, -y)
		dyMax := min(r, h-1-y)
		for x := 0; x < w; x++ {
			c := y*w + x
			lc := k.lum[c]
			dxMin := max(-r, -x)
			dxMax := min(r, w-1-x)

			var sumR, sumG, sumB, sumW float32
			for dy := dyMin; dy <= dyMax; dy++ {
				row := (y + dy) * w
				srow := (dy+r)*size + r
				for dx := dxMin; dx <= dxMax; dx++ {
					q := row + x + dx
					weight := k.spatial[srow+dx]
					if d := k.lum[q] - lc; d != 0 {
						weight *= math32.Exp(-d * d * k.invRange)
					}
					sumR += weight * in.R[q]
					sumG += weight * in.G[q]
					sumB += weight * in.B[q]
					sumW += weight
				}
			}

			if sumW > 0 {
				out.R[c] = sumR / sumW
				out.G[c] = sumG / sumW
				out.B[c] = sumB / sumW
			} else {
				out.R[c] = in.R[c]
				out.G[c] = in.G[c]
				out.B[c] = in.B[c]
			}
		}
	}
}
