// Package images - Resampling and partitioning helpers for linear images.
package images

import (
	"runtime"
	"sync"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// Clamp restricts value to [min, max].
func Clamp(value, min, max float32) float32 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampInt restricts value to [min, max].
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// CeilDiv returns ceil(a / b) for positive integers.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Parallel splits [0, dataSize) into contiguous parts, one per CPU, and runs
// fn on each part concurrently. It blocks until every part is done.
//
// Arguments:
//   - dataSize: The number of items (usually rows) to process.
//   - fn: Called with each [partStart, partEnd) range.
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	ParallelN(runtime.NumCPU(), dataSize, fn)
}

// ParallelN is Parallel with an explicit goroutine count.
func ParallelN(workers, dataSize int, fn func(partStart, partEnd int)) {
	if dataSize <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}

	// Small inputs are not worth the goroutine overhead.
	if workers == 1 || dataSize < workers*2 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize
		// Last partition gets any remaining data.
		if i == workers-1 {
			partEnd = dataSize
		}
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}
	wg.Wait()
}

// BoxDownsample shrinks src by an integer factor, averaging each factor×factor
// block. Output dimensions use ceiling division, so blocks on the right and
// bottom edges may be partial; those average only their in-bounds samples.
//
// Arguments:
//   - src: The source image.
//   - factor: The integer reduction factor. A factor of 1 returns a copy.
//
// Returns:
//   - *LinearImage: The downsampled image.
//   - error: If factor < 1 or src is invalid.
func BoxDownsample(src *LinearImage, factor int) (*LinearImage, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if factor < 1 {
		return nil, errors.Errorf("invalid downsample factor %d", factor)
	}
	if factor == 1 {
		return src.Clone(), nil
	}

	dstW := CeilDiv(src.Width, factor)
	dstH := CeilDiv(src.Height, factor)
	dst, err := NewLinearImage(dstW, dstH)
	if err != nil {
		return nil, err
	}

	Parallel(dstH, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			y0 := y * factor
			y1 := min(y0+factor, src.Height)
			for x := 0; x < dstW; x++ {
				x0 := x * factor
				x1 := min(x0+factor, src.Width)

				var r, g, b float32
				for sy := y0; sy < y1; sy++ {
					row := sy * src.Width
					for sx := x0; sx < x1; sx++ {
						r += src.R[row+sx]
						g += src.G[row+sx]
						b += src.B[row+sx]
					}
				}
				inv := 1 / float32((y1-y0)*(x1-x0))
				o := y*dstW + x
				dst.R[o] = r * inv
				dst.G[o] = g * inv
				dst.B[o] = b * inv
			}
		}
	})

	return dst, nil
}

// BilinearUpsample resizes src to width×height with bilinear interpolation.
// Sample positions use half-pixel centres and are clamped to the source edge,
// so nothing is extrapolated beyond the source bounds.
//
// Arguments:
//   - src: The source image.
//   - width: Target width. Must be > 0.
//   - height: Target height. Must be > 0.
//
// Returns:
//   - *LinearImage: The resized image.
//   - error: If src or the target size is invalid.
func BilinearUpsample(src *LinearImage, width, height int) (*LinearImage, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	dst, err := NewLinearImage(width, height)
	if err != nil {
		return nil, err
	}
	if src.Width == width && src.Height == height {
		_ = dst.CopyFrom(src)
		return dst, nil
	}

	scaleX := float32(src.Width) / float32(width)
	scaleY := float32(src.Height) / float32(height)
	maxX := float32(src.Width - 1)
	maxY := float32(src.Height - 1)

	// Precompute the horizontal taps once; every row shares them.
	xs0 := make([]int, width)
	xs1 := make([]int, width)
	fxs := make([]float32, width)
	for x := 0; x < width; x++ {
		sx := Clamp((float32(x)+0.5)*scaleX-0.5, 0, maxX)
		x0 := int(math32.Floor(sx))
		xs0[x] = x0
		xs1[x] = min(x0+1, src.Width-1)
		fxs[x] = sx - float32(x0)
	}

	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			sy := Clamp((float32(y)+0.5)*scaleY-0.5, 0, maxY)
			y0 := int(math32.Floor(sy))
			y1 := min(y0+1, src.Height-1)
			fy := sy - float32(y0)
			row0 := y0 * src.Width
			row1 := y1 * src.Width

			for x := 0; x < width; x++ {
				i00 := row0 + xs0[x]
				i01 := row0 + xs1[x]
				i10 := row1 + xs0[x]
				i11 := row1 + xs1[x]
				fx := fxs[x]
				o := y*width + x
				dst.R[o] = lerp2(src.R[i00], src.R[i01], src.R[i10], src.R[i11], fx, fy)
				dst.G[o] = lerp2(src.G[i00], src.G[i01], src.G[i10], src.G[i11], fx, fy)
				dst.B[o] = lerp2(src.B[i00], src.B[i01], src.B[i10], src.B[i11], fx, fy)
			}
		}
	})

	return dst, nil
}

func lerp2(v00, v01, v10, v11, fx, fy float32) float32 {
	top := v00 + (v01-v00)*fx
	bottom := v10 + (v11-v10)*fx
	return top + (bottom-top)*fy
}

// MeanAbsoluteError returns the mean absolute difference over all channels.
func MeanAbsoluteError(a, b *LinearImage) (float64, error) {
	if !a.SameSize(b) {
		return 0, errors.Wrapf(ErrSizeMismatch, "%dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	var sum float64
	for c, pa := range a.Channels() {
		pb := b.Channels()[c]
		for i := range pa {
			sum += float64(math32.Abs(pa[i] - pb[i]))
		}
	}
	return sum / float64(a.Pixels()*3), nil
}
