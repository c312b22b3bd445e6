package cache

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
)

var params = kernels.Params{SpatialSigma: 3, RangeSigma: 0.1}

func genImage(t testing.TB, w, h int, seed float32) *images.LinearImage {
	t.Helper()
	img, err := images.NewLinearImage(w, h)
	require.NoError(t, err)
	for i := range img.R {
		img.R[i] = seed + float32(i%7)/7
		img.G[i] = seed + float32(i%5)/5
		img.B[i] = seed + float32(i%3)/3
	}
	return img
}

func TestFindReturnsBitIdenticalCopy(t *testing.T) {
	c := New(DefaultMaxSize, DefaultMaxMemoryMB)
	in := genImage(t, 8, 8, 0)
	result := genImage(t, 8, 8, 0.25)
	result.R[3] = float32(math.Nextafter32(0.5, 1))

	c.Insert(in, params, result)

	out := images.MustNewLinearImage(8, 8)
	require.True(t, c.Find(in, params, out))
	assert.Equal(t, result.R, out.R)
	assert.Equal(t, result.G, out.G)
	assert.Equal(t, result.B, out.B)

	// Mutating the caller's result or the returned copy must not reach the entry.
	result.R[0] = 99
	out.G[0] = -99
	again := images.MustNewLinearImage(8, 8)
	require.True(t, c.Find(in, params, again))
	assert.NotEqual(t, float32(99), again.R[0])
	assert.NotEqual(t, float32(-99), again.G[0])
}

func TestFindMisses(t *testing.T) {
	c := New(DefaultMaxSize, DefaultMaxMemoryMB)
	in := genImage(t, 8, 8, 0)
	c.Insert(in, params, genImage(t, 8, 8, 0.5))

	tests := []struct {
		name string
		in   *images.LinearImage
		p    kernels.Params
	}{
		{name: "spatial differs", in: in, p: kernels.Params{SpatialSigma: 3.002, RangeSigma: 0.1}},
		{name: "range differs", in: in, p: kernels.Params{SpatialSigma: 3, RangeSigma: 0.102}},
		{name: "content differs", in: genImage(t, 8, 8, 0.01), p: params},
		{name: "shape differs", in: genImage(t, 16, 4, 0), p: params},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := images.MustNewLinearImage(tt.in.Width, tt.in.Height)
			assert.False(t, c.Find(tt.in, tt.p, out))
		})
	}
}

func TestQuantizedSigmasShareEntry(t *testing.T) {
	c := New(DefaultMaxSize, DefaultMaxMemoryMB)
	in := genImage(t, 4, 4, 0)
	c.Insert(in, params, genImage(t, 4, 4, 0.5))

	out := images.MustNewLinearImage(4, 4)
	assert.True(t, c.Find(in, kernels.Params{SpatialSigma: 3.0001, RangeSigma: 0.1}, out))
}

func TestQuantizeSigma(t *testing.T) {
	assert.Equal(t, int64(3000), QuantizeSigma(3))
	assert.Equal(t, int64(100), QuantizeSigma(0.1))
	assert.NotEqual(t, QuantizeSigma(1.0), QuantizeSigma(1.0011))
}

func TestHashImageCoversAllChannels(t *testing.T) {
	a := genImage(t, 4, 4, 0)
	base := HashImage(a)
	assert.Equal(t, base, HashImage(a.Clone()))

	for c := 0; c < 3; c++ {
		b := a.Clone()
		b.Channels()[c][5] += 0.001
		assert.NotEqual(t, base, HashImage(b), "channel %d", c)
	}
}

func TestInsertReplacesExistingKey(t *testing.T) {
	c := New(DefaultMaxSize, DefaultMaxMemoryMB)
	in := genImage(t, 4, 4, 0)
	c.Insert(in, params, genImage(t, 4, 4, 0.1))
	second := genImage(t, 4, 4, 0.2)
	c.Insert(in, params, second)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, second.ByteSize(), c.MemoryBytes())
	out := images.MustNewLinearImage(4, 4)
	require.True(t, c.Find(in, params, out))
	assert.Equal(t, second.R, out.R)
}

func TestEntryBoundEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, DefaultMaxMemoryMB)
	a, b, d := genImage(t, 4, 4, 0), genImage(t, 4, 4, 1), genImage(t, 4, 4, 2)

	c.Insert(a, params, a)
	c.Insert(b, params, b)
	// Touch a so b becomes the oldest.
	require.True(t, c.Find(a, params, images.MustNewLinearImage(4, 4)))
	c.Insert(d, params, d)

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Find(a, params, images.MustNewLinearImage(4, 4)))
	assert.False(t, c.Find(b, params, images.MustNewLinearImage(4, 4)))
	assert.True(t, c.Find(d, params, images.MustNewLinearImage(4, 4)))
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryBoundEvicts(t *testing.T) {
	// 256x256x3x4 = 768 KiB, so a 1 MiB cache holds one of them.
	c := New(DefaultMaxSize, 1)
	a, b := genImage(t, 256, 256, 0), genImage(t, 256, 256, 1)

	c.Insert(a, params, a)
	c.Insert(b, params, b)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, b.ByteSize(), c.MemoryBytes())
	assert.LessOrEqual(t, c.MemoryBytes(), int64(1024*1024))
	assert.False(t, c.Find(a, params, images.MustNewLinearImage(256, 256)))
}

func TestOversizedResultIsNotStored(t *testing.T) {
	c := New(DefaultMaxSize, 1)
	small := genImage(t, 4, 4, 0)
	c.Insert(small, params, small)

	huge := genImage(t, 512, 512, 0)
	c.Insert(huge, params, huge)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, small.ByteSize(), c.MemoryBytes())
}

func TestResizeBoundsEvictOldest(t *testing.T) {
	c := New(DefaultMaxSize, DefaultMaxMemoryMB)
	imgs := make([]*images.LinearImage, 5)
	for i := range imgs {
		imgs[i] = genImage(t, 256, 256, float32(i))
		c.Insert(imgs[i], params, imgs[i])
	}
	require.Equal(t, 5, c.Len())

	c.SetMaxSize(3)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 3*imgs[0].ByteSize(), c.MemoryBytes())
	assert.False(t, c.Find(imgs[0], params, images.MustNewLinearImage(256, 256)))
	assert.False(t, c.Find(imgs[1], params, images.MustNewLinearImage(256, 256)))

	c.SetMaxMemoryMB(1)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Find(imgs[4], params, images.MustNewLinearImage(256, 256)))
}

func TestClear(t *testing.T) {
	c := New(DefaultMaxSize, DefaultMaxMemoryMB)
	in := genImage(t, 4, 4, 0)
	c.Insert(in, params, in)
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.MemoryBytes())
	assert.False(t, c.Find(in, params, images.MustNewLinearImage(4, 4)))
}

func TestConcurrentUseKeepsBounds(t *testing.T) {
	c := New(3, DefaultMaxMemoryMB)
	inputs := make([]*images.LinearImage, 8)
	for i := range inputs {
		inputs[i] = genImage(t, 16, 16, float32(i))
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			out := images.MustNewLinearImage(16, 16)
			for i := 0; i < 50; i++ {
				in := inputs[(g+i)%len(inputs)]
				if !c.Find(in, params, out) {
					c.Insert(in, params, in)
				}
			}
		}(g)
	}
	wg.Wait()

	stats := c.Stats()
	assert.LessOrEqual(t, stats.Entries, 3)
	assert.Equal(t, int64(stats.Entries)*inputs[0].ByteSize(), stats.MemoryBytes)
	assert.Equal(t, int64(8*50), stats.Hits+stats.Misses)
}
