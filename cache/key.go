package cache

import (
	"math"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
)

// SigmaScale is the quantisation step for sigmas in cache keys. Sigmas that
// round to the same thousandth share a key.
const SigmaScale = 1000

// Key identifies a filter result by content and parameters.
type Key struct {
	// ImageHash is xxHash64 over the raw bytes of R, then G, then B.
	ImageHash uint64
	Width     int
	Height    int
	// Spatial and Range are the sigmas quantised by SigmaScale.
	Spatial int64
	Range   int64
}

// NewKey hashes in and quantises the sigmas.
func NewKey(in *images.LinearImage, p kernels.Params) Key {
	return Key{
		ImageHash: HashImage(in),
		Width:     in.Width,
		Height:    in.Height,
		Spatial:   QuantizeSigma(p.SpatialSigma),
		Range:     QuantizeSigma(p.RangeSigma),
	}
}

// QuantizeSigma maps a sigma to its key bucket.
func QuantizeSigma(s float32) int64 {
	return int64(math.Round(float64(s) * SigmaScale))
}

// HashImage returns xxHash64 of the three channel planes in R, G, B order.
func HashImage(in *images.LinearImage) uint64 {
	d := xxhash.New()
	for _, plane := range in.Channels() {
		_, _ = d.Write(planeBytes(plane))
	}
	return d.Sum64()
}

// planeBytes views a float32 plane as bytes without copying.
func planeBytes(plane []float32) []byte {
	if len(plane) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&plane[0])), len(plane)*4)
}
