package optimizer

import (
	"log/slog"
	"sync"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
)

const (
	// DefaultLargeImagePixels is the pixel count above which the GPU is preferred.
	DefaultLargeImagePixels = 2_000_000
	// DefaultLargeSpatialSigma is the spatial sigma above which Fast is preferred.
	DefaultLargeSpatialSigma = 5.0
)

// Config holds the selection thresholds.
type Config struct {
	// LargeImagePixels: images with strictly more pixels go to the GPU.
	LargeImagePixels int `json:"large_image_pixels" yaml:"large_image_pixels"`
	// LargeSpatialSigma: spatial sigmas strictly above this use Fast.
	LargeSpatialSigma float32 `json:"large_spatial_sigma" yaml:"large_spatial_sigma"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		LargeImagePixels:  DefaultLargeImagePixels,
		LargeSpatialSigma: DefaultLargeSpatialSigma,
	}
}

// GPU is the device backend the optimizer drives. *gpu.Context satisfies it.
type GPU interface {
	// Available reports whether the device is usable. The first call may
	// initialise the device.
	Available() bool
	// Filter runs the bilateral kernel on the device.
	Filter(in, out *images.LinearImage, p kernels.Params) error
}

// Optimizer selects and executes bilateral filter implementations. It is safe
// for concurrent use.
type Optimizer struct {
	mu      sync.RWMutex
	cfg     Config
	gpu     GPU
	workers *workerpool.Pool
	buffers *kernels.Pool
	logger  *slog.Logger
}

// New creates an Optimizer.
//
// Arguments:
//   - cfg: Selection thresholds.
//   - gpu: The GPU backend, or nil when none is compiled in.
//   - workers: Row-band pool for the CPU filters. Nil runs single-banded.
//
// Returns:
//   - *Optimizer: The optimizer.
func New(cfg Config, gpu GPU, workers *workerpool.Pool) *Optimizer {
	return &Optimizer{
		cfg:     cfg,
		gpu:     gpu,
		workers: workers,
		buffers: &kernels.Pool{},
		logger:  slog.Default(),
	}
}

// SetLogger replaces the logger. A nil logger restores slog.Default.
func (o *Optimizer) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	o.mu.Lock()
	o.logger = l
	o.mu.Unlock()
}

// Config returns the current thresholds.
func (o *Optimizer) Config() Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

// SetConfig replaces the thresholds. It applies to the next call.
func (o *Optimizer) SetConfig(cfg Config) {
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
}

// SetWorkers replaces the CPU worker pool. The caller owns the previous pool.
func (o *Optimizer) SetWorkers(workers *workerpool.Pool) {
	o.mu.Lock()
	o.workers = workers
	o.mu.Unlock()
}

func (o *Optimizer) snapshot() (Config, *workerpool.Pool, *slog.Logger) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg, o.workers, o.logger
}

func (o *Optimizer) gpuAvailable() bool {
	return o.gpu != nil && o.gpu.Available()
}

// Select picks an implementation for the given workload.
//
// The GPU check may initialise the device on first use.
//
// Arguments:
//   - width: Image width.
//   - height: Image height.
//   - spatial: Spatial sigma.
//   - rangeSigma: Range sigma. Currently unused by the rules.
//   - enableFast: Whether the Fast approximation may be chosen.
//   - enableGPU: Whether the GPU may be chosen.
//
// Returns:
//   - Implementation: GPUVulkan, FastApproximation or StandardCPU.
func (o *Optimizer) Select(width, height int, spatial, rangeSigma float32, enableFast, enableGPU bool) Implementation {
	cfg, _, _ := o.snapshot()
	return o.selectWith(cfg, width, height, spatial, enableFast, enableGPU)
}

func (o *Optimizer) selectWith(cfg Config, width, height int, spatial float32, enableFast, enableGPU bool) Implementation {
	if enableGPU && width*height > cfg.LargeImagePixels && o.gpuAvailable() {
		return GPUVulkan
	}
	if enableFast && spatial > cfg.LargeSpatialSigma {
		return FastApproximation
	}
	return StandardCPU
}

// Execute filters in into out and reports the implementation that produced
// the result.
//
// An Auto hint runs Select. Any other hint is used as given. When the GPU
// path fails the call falls back to Fast (if enabled and the spatial sigma is
// above the threshold) or Standard before returning.
//
// Arguments:
//   - in: The source image.
//   - out: The destination, same size as in.
//   - p: The filter sigmas.
//   - hint: Requested implementation, or Auto.
//   - enableFast: Whether Fast may be selected or used as a fallback.
//   - enableGPU: Whether the GPU may be selected.
//
// Returns:
//   - Implementation: The implementation actually used.
//   - error: Only for invalid parameters or images.
func (o *Optimizer) Execute(in, out *images.LinearImage, p kernels.Params, hint Implementation, enableFast, enableGPU bool) (Implementation, error) {
	if err := p.Validate(); err != nil {
		return hint, err
	}
	if err := in.Validate(); err != nil {
		return hint, errors.Wrap(err, "input")
	}
	if !in.SameSize(out) {
		return hint, errors.Wrapf(images.ErrSizeMismatch,
			"input %dx%d, output %dx%d", in.Width, in.Height, out.Width, out.Height)
	}

	cfg, workers, logger := o.snapshot()
	opts := kernels.Options{Workers: workers, Buffers: o.buffers}

	impl := hint
	if impl == Auto {
		impl = o.selectWith(cfg, in.Width, in.Height, p.SpatialSigma, enableFast, enableGPU)
	}

	if impl == GPUVulkan {
		err := errors.New("no GPU backend")
		if o.gpu != nil {
			err = o.gpu.Filter(in, out, p)
		}
		if err == nil {
			return GPUVulkan, nil
		}
		impl = StandardCPU
		if enableFast && p.SpatialSigma > cfg.LargeSpatialSigma {
			impl = FastApproximation
		}
		logger.Warn("optimizer: GPU filter failed, falling back",
			"fallback", impl.String(), "width", in.Width, "height", in.Height, "error", err)
	}

	switch impl {
	case FastApproximation:
		if err := kernels.FastInto(in, out, p, opts); err != nil {
			return impl, err
		}
		return FastApproximation, nil
	case StandardCPU:
		if err := kernels.StandardInto(in, out, p, opts); err != nil {
			return impl, err
		}
		return StandardCPU, nil
	default:
		return impl, errors.Errorf("unknown implementation %d", int(impl))
	}
}
