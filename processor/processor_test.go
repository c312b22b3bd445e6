package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
	"github.com/nvr-ai/go-darkroom/optimizer"
)

// MockGPU is a scripted device backend.
type MockGPU struct {
	mu        sync.Mutex
	available bool
	err       error
	calls     int
	timeout   time.Duration
	shutdown  bool
}

func (m *MockGPU) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available && !m.shutdown
}

func (m *MockGPU) Filter(in, out *images.LinearImage, p kernels.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	return kernels.StandardInto(in, out, p, kernels.Options{})
}

func (m *MockGPU) SetFenceTimeout(d time.Duration) {
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
}

func (m *MockGPU) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

func genImage(w, h int, seed int) *images.LinearImage {
	img := images.MustNewLinearImage(w, h)
	for i := range img.R {
		v := float32((i*7+seed)%17) / 17
		img.R[i], img.G[i], img.B[i] = v, 1-v, v*0.5
	}
	return img
}

func newTestProcessor(t *testing.T, cfg Config, g *MockGPU) *Processor {
	t.Helper()
	p, err := New(cfg, WithGPU(g))
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

var small = kernels.Params{SpatialSigma: 2, RangeSigma: 0.1}

func TestProcessCachesResults(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig(), &MockGPU{})
	in := genImage(32, 24, 0)

	first, err := p.Process(context.Background(), in, small)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), in, small)
	require.NoError(t, err)

	assert.Equal(t, first.R, second.R)
	assert.Equal(t, first.G, second.G)
	assert.Equal(t, first.B, second.B)

	want, err := kernels.Standard(in, small, kernels.Options{})
	require.NoError(t, err)
	assert.Equal(t, want.R, first.R)

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.StandardCalls)
	assert.GreaterOrEqual(t, stats.AvgProcessingTimeMs, 0.0)
	assert.Equal(t, 1, p.CacheStats().Entries)

	// Returned images are independent of the cached copy.
	second.R[0] = 42
	third, err := p.Process(context.Background(), in, small)
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), third.R[0])
}

func TestProcessWithoutCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCache = false
	p := newTestProcessor(t, cfg, &MockGPU{})
	in := genImage(16, 16, 0)

	for i := 0; i < 3; i++ {
		_, err := p.Process(context.Background(), in, small)
		require.NoError(t, err)
	}
	stats := p.Stats()
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Equal(t, int64(0), stats.CacheMisses)
	assert.Equal(t, int64(3), stats.StandardCalls)
	assert.Equal(t, 0, p.CacheStats().Entries)
}

func TestProcessSelectsImplementation(t *testing.T) {
	tests := []struct {
		name     string
		gpu      *MockGPU
		params   kernels.Params
		want     optimizer.Implementation
		wantGPU  int64
		wantFast int64
		wantStd  int64
	}{
		{
			name:    "gpu for large image",
			gpu:     &MockGPU{available: true},
			params:  small,
			want:    optimizer.GPUVulkan,
			wantGPU: 1,
		},
		{
			name:     "gpu failure falls back to fast",
			gpu:      &MockGPU{available: true, err: errors.New("out of device memory")},
			params:   kernels.Params{SpatialSigma: 8, RangeSigma: 0.1},
			want:     optimizer.FastApproximation,
			wantFast: 1,
		},
		{
			name:     "fast for large sigma without gpu",
			gpu:      &MockGPU{},
			params:   kernels.Params{SpatialSigma: 8, RangeSigma: 0.1},
			want:     optimizer.FastApproximation,
			wantFast: 1,
		},
		{
			name:    "standard otherwise",
			gpu:     &MockGPU{},
			params:  small,
			want:    optimizer.StandardCPU,
			wantStd: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.GPUThresholdPixels = 1000
			p := newTestProcessor(t, cfg, tt.gpu)

			out, impl, err := p.ProcessWithHint(context.Background(), genImage(40, 40, 1), tt.params, optimizer.Auto)
			require.NoError(t, err)
			require.NotNil(t, out)
			assert.Equal(t, tt.want, impl)

			stats := p.Stats()
			assert.Equal(t, tt.wantGPU, stats.GPUCalls)
			assert.Equal(t, tt.wantFast, stats.FastApproxCalls)
			assert.Equal(t, tt.wantStd, stats.StandardCalls)

			timings := p.Timings()
			require.Len(t, timings, 1)
			assert.Equal(t, tt.want.String(), timings[0].Name)
		})
	}
}

func TestProcessRejectsBadInput(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig(), &MockGPU{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, genImage(8, 8, 0), small)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = p.Process(context.Background(), genImage(8, 8, 0), kernels.Params{SpatialSigma: 0, RangeSigma: 1})
	assert.ErrorIs(t, err, kernels.ErrInvalidParameters)

	_, err = p.Process(context.Background(), &images.LinearImage{Width: 2, Height: 2}, small)
	assert.ErrorIs(t, err, images.ErrSizeMismatch)

	assert.Equal(t, int64(0), p.Stats().TotalCalls)
}

func TestExtractDetailAndClarity(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig(), &MockGPU{})
	in := genImage(24, 24, 3)

	detail, err := p.ExtractDetail(context.Background(), in, small)
	require.NoError(t, err)
	base, err := p.Process(context.Background(), in, small)
	require.NoError(t, err)
	for i := range in.R {
		assert.InDelta(t, in.R[i], base.R[i]+detail.R[i], 1e-6)
	}

	same, err := p.Clarity(context.Background(), in, small, 0)
	require.NoError(t, err)
	assert.Equal(t, in.R, same.R)

	boosted, err := p.Clarity(context.Background(), in, small, 1)
	require.NoError(t, err)
	for i := range in.R {
		assert.InDelta(t, in.R[i]+detail.R[i], boosted.R[i], 1e-6)
	}
}

func TestSetConfig(t *testing.T) {
	g := &MockGPU{}
	p := newTestProcessor(t, DefaultConfig(), g)
	for i := 0; i < 4; i++ {
		_, err := p.Process(context.Background(), genImage(16, 16, i), small)
		require.NoError(t, err)
	}
	require.Equal(t, 4, p.CacheStats().Entries)

	cfg := DefaultConfig()
	cfg.MaxCacheSize = 2
	cfg.Workers = 2
	cfg.GPUFenceTimeout = 3 * time.Second
	require.NoError(t, p.SetConfig(cfg))

	assert.Equal(t, cfg, p.Config())
	assert.Equal(t, 2, p.CacheStats().Entries)
	assert.Equal(t, 3*time.Second, g.timeout)

	// The new worker pool is used on the next call.
	_, err := p.Process(context.Background(), genImage(16, 16, 9), small)
	require.NoError(t, err)

	bad := cfg
	bad.MaxCacheSize = 0
	assert.ErrorIs(t, p.SetConfig(bad), ErrInvalidConfig)
	assert.Equal(t, cfg, p.Config())
}

func TestResetStats(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig(), &MockGPU{})
	_, err := p.Process(context.Background(), genImage(8, 8, 0), small)
	require.NoError(t, err)

	p.ResetStats()
	assert.Equal(t, Stats{}, p.Stats())
	assert.Empty(t, p.Timings())

	p.ClearCache()
	assert.Equal(t, 0, p.CacheStats().Entries)
}

func TestConcurrentProcess(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig(), &MockGPU{})
	inputs := []*images.LinearImage{genImage(16, 16, 0), genImage(16, 16, 1), genImage(16, 16, 2)}
	want := make([]*images.LinearImage, len(inputs))
	for i, in := range inputs {
		var err error
		want[i], err = kernels.Standard(in, small, kernels.Options{})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 6; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				idx := (g + i) % len(inputs)
				out, err := p.Process(context.Background(), inputs[idx], small)
				if assert.NoError(t, err) {
					assert.Equal(t, want[idx].R, out.R)
				}
			}
		}(g)
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, int64(60), stats.TotalCalls)
	assert.Equal(t, int64(60), stats.CacheHits+stats.CacheMisses)
	assert.Equal(t, stats.CacheMisses, stats.StandardCalls)
}

func TestCloseShutsDownGPU(t *testing.T) {
	g := &MockGPU{available: true}
	p, err := New(DefaultConfig(), WithGPU(g))
	require.NoError(t, err)
	p.Close()
	assert.True(t, g.shutdown)

	// Calls still succeed on the CPU after Close.
	_, err = p.Process(context.Background(), genImage(8, 8, 0), small)
	require.NoError(t, err)
}
