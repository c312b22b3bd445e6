// Package processor - Entry point for edge-preserving filtering.
//
// A Processor fronts the optimizer with a content-addressed result cache and
// keeps cumulative telemetry about which implementation served each call.
// Every call is synchronous. Device failures are recovered inside the
// optimizer, so errors only report invalid input or cancellation.
package processor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-darkroom/cache"
	"github.com/nvr-ai/go-darkroom/gpu"
	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
	"github.com/nvr-ai/go-darkroom/optimizer"
	"github.com/nvr-ai/go-darkroom/profiler"
)

// GPU is the device backend used by a Processor. *gpu.Context satisfies it.
type GPU interface {
	optimizer.GPU
	SetFenceTimeout(time.Duration)
	Shutdown()
}

// Option customises a Processor.
type Option func(*Processor)

// WithGPU replaces the default Vulkan context.
func WithGPU(g GPU) Option {
	return func(p *Processor) { p.gpu = g }
}

// WithLogger sets the logger for the processor, its cache and optimizer.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// Processor runs bilateral filters with caching and telemetry. It is safe for
// concurrent use.
type Processor struct {
	mu      sync.RWMutex
	cfg     Config
	workers *workerpool.Pool

	gpu       GPU
	cache     *cache.Cache
	optimizer *optimizer.Optimizer
	profiler  *profiler.Profiler
	stats     counters
	logger    *slog.Logger
}

// New creates a Processor.
//
// Arguments:
//   - cfg: The initial configuration.
//   - opts: Optional overrides.
//
// Returns:
//   - *Processor: The processor. Call Close to release workers and the device.
//   - error: If cfg is invalid.
func New(cfg Config, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:      cfg,
		profiler: profiler.New(0),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.gpu == nil {
		p.gpu = gpu.NewContext(gpu.Config{FenceTimeout: cfg.GPUFenceTimeout})
	}

	p.workers = kernels.NewWorkerPool(cfg.Workers)
	p.cache = cache.New(cfg.MaxCacheSize, cfg.MaxCacheMemoryMB)
	p.cache.SetLogger(p.logger)
	p.optimizer = optimizer.New(cfg.optimizerConfig(), p.gpu, p.workers)
	p.optimizer.SetLogger(p.logger)

	return p, nil
}

// Close stops the worker pool and releases the GPU device.
func (p *Processor) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers != nil {
		p.workers.Close()
		p.workers = nil
	}
	p.optimizer.SetWorkers(nil)
	p.gpu.Shutdown()
}

// Config returns the current configuration.
func (p *Processor) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// SetConfig replaces the configuration. Cache bounds shrink immediately;
// everything else applies to the next call.
func (p *Processor) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.cfg
	p.cfg = cfg

	p.cache.SetMaxSize(cfg.MaxCacheSize)
	p.cache.SetMaxMemoryMB(cfg.MaxCacheMemoryMB)
	p.optimizer.SetConfig(cfg.optimizerConfig())
	p.gpu.SetFenceTimeout(cfg.GPUFenceTimeout)

	if cfg.Workers != prev.Workers && p.workers != nil {
		old := p.workers
		p.workers = kernels.NewWorkerPool(cfg.Workers)
		p.optimizer.SetWorkers(p.workers)
		// In-flight calls hold no reference to the old pool once their
		// ParallelFor returns, and SetConfig holds the write lock so none are
		// running through this Processor.
		old.Close()
	}

	p.logger.Info("processor: configuration updated",
		"cache", cfg.EnableCache, "fast", cfg.EnableFastApproximation, "gpu", cfg.EnableGPU,
		"max_cache_size", cfg.MaxCacheSize, "max_cache_memory", profiler.FormatBytes(uint64(cfg.MaxCacheMemoryMB)*1024*1024))
	return nil
}

// Process filters in with the given sigmas and returns a new image.
//
// Arguments:
//   - ctx: Checked before any work starts.
//   - in: The source image. It is only read.
//   - params: The filter sigmas.
//
// Returns:
//   - *images.LinearImage: The filtered image, owned by the caller.
//   - error: For cancellation, invalid parameters or an invalid image.
func (p *Processor) Process(ctx context.Context, in *images.LinearImage, params kernels.Params) (*images.LinearImage, error) {
	out, _, err := p.ProcessWithHint(ctx, in, params, optimizer.Auto)
	return out, err
}

// ProcessWithHint is Process with an explicit implementation request. It also
// reports which implementation produced the result; a cache hit reports the
// hint unchanged.
func (p *Processor) ProcessWithHint(ctx context.Context, in *images.LinearImage, params kernels.Params, hint optimizer.Implementation) (*images.LinearImage, optimizer.Implementation, error) {
	if err := ctx.Err(); err != nil {
		return nil, hint, errors.Wrap(err, "process")
	}
	if err := params.Validate(); err != nil {
		return nil, hint, err
	}
	if err := in.Validate(); err != nil {
		return nil, hint, err
	}

	// Holding the read lock keeps the worker pool alive for the whole call.
	p.mu.RLock()
	defer p.mu.RUnlock()
	cfg := p.cfg

	p.stats.totalCalls.Add(1)
	start := time.Now()
	defer func() { p.stats.recordDuration(time.Since(start)) }()

	out, err := images.NewLinearImage(in.Width, in.Height)
	if err != nil {
		return nil, hint, err
	}

	var key cache.Key
	if cfg.EnableCache {
		key = cache.NewKey(in, params)
		if p.cache.FindKey(key, out) {
			p.stats.cacheHits.Add(1)
			return out, hint, nil
		}
		p.stats.cacheMisses.Add(1)
	}

	execStart := time.Now()
	impl, err := p.optimizer.Execute(in, out, params, hint, cfg.EnableFastApproximation, cfg.EnableGPU)
	elapsed := time.Since(execStart)
	if err != nil {
		return nil, impl, err
	}
	p.profiler.Record(impl.String(), elapsed)
	p.stats.recordImplementation(impl)

	if cfg.EnableCache {
		p.cache.InsertKey(key, out)
	}

	p.logger.Debug("processor: filtered image",
		"implementation", impl.String(), "width", in.Width, "height", in.Height,
		"spatial_sigma", params.SpatialSigma, "range_sigma", params.RangeSigma, "elapsed", elapsed)
	return out, impl, nil
}

// ExtractDetail returns in − bilateral(in), the high-frequency texture layer.
func (p *Processor) ExtractDetail(ctx context.Context, in *images.LinearImage, params kernels.Params) (*images.LinearImage, error) {
	base, err := p.Process(ctx, in, params)
	if err != nil {
		return nil, err
	}
	return kernels.Detail(in, base)
}

// Clarity returns in + amount·detail. Positive amounts raise local contrast,
// negative amounts soften it, and zero returns a copy of in.
func (p *Processor) Clarity(ctx context.Context, in *images.LinearImage, params kernels.Params, amount float32) (*images.LinearImage, error) {
	detail, err := p.ExtractDetail(ctx, in, params)
	if err != nil {
		return nil, err
	}
	return kernels.AddDetail(in, detail, amount)
}

// Stats returns the cumulative counters.
func (p *Processor) Stats() Stats {
	return p.stats.snapshot()
}

// ResetStats zeroes the counters and per-implementation timings.
func (p *Processor) ResetStats() {
	p.stats.reset()
	p.profiler.Reset()
}

// CacheStats returns the cache occupancy.
func (p *Processor) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// ClearCache drops every cached result.
func (p *Processor) ClearCache() {
	p.cache.Clear()
}

// Timings returns per-implementation durations of filter executions.
func (p *Processor) Timings() []profiler.OperationStats {
	return p.profiler.Snapshot()
}
