package processor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-darkroom/cache"
	"github.com/nvr-ai/go-darkroom/gpu"
	"github.com/nvr-ai/go-darkroom/optimizer"
)

// ErrInvalidConfig is returned by Validate and LoadConfig.
var ErrInvalidConfig = errors.New("invalid processor config")

// Config is the runtime configuration of a Processor. Every field may be
// changed with SetConfig and applies to the next call.
type Config struct {
	// EnableCache stores and reuses filter results.
	EnableCache bool `json:"enable_cache" yaml:"enable_cache"`

	// EnableFastApproximation lets the optimizer choose the downsampled filter.
	EnableFastApproximation bool `json:"enable_fast_approximation" yaml:"enable_fast_approximation"`

	// EnableGPU lets the optimizer choose the compute shader.
	EnableGPU bool `json:"enable_gpu" yaml:"enable_gpu"`

	// MaxCacheSize is the cache entry bound.
	MaxCacheSize int `json:"max_cache_size" yaml:"max_cache_size"`

	// MaxCacheMemoryMB is the cache memory bound in MiB.
	MaxCacheMemoryMB int `json:"max_cache_memory_mb" yaml:"max_cache_memory_mb"`

	// FastApproxThreshold is the spatial sigma above which Fast is preferred.
	FastApproxThreshold float32 `json:"fast_approx_threshold" yaml:"fast_approx_threshold"`

	// GPUThresholdPixels is the pixel count above which the GPU is preferred.
	GPUThresholdPixels int `json:"gpu_threshold_pixels" yaml:"gpu_threshold_pixels"`

	// Workers is the CPU row-band pool size. Zero means min(4, NumCPU).
	Workers int `json:"workers" yaml:"workers"`

	// GPUFenceTimeout bounds each wait for the device. Zero means the GPU
	// package default.
	GPUFenceTimeout time.Duration `json:"gpu_fence_timeout" yaml:"gpu_fence_timeout"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		EnableCache:             true,
		EnableFastApproximation: true,
		EnableGPU:               true,
		MaxCacheSize:            cache.DefaultMaxSize,
		MaxCacheMemoryMB:        cache.DefaultMaxMemoryMB,
		FastApproxThreshold:     optimizer.DefaultLargeSpatialSigma,
		GPUThresholdPixels:      optimizer.DefaultLargeImagePixels,
		Workers:                 0,
		GPUFenceTimeout:         gpu.DefaultFenceTimeout,
	}
}

// Validate checks every bound.
func (c Config) Validate() error {
	switch {
	case c.MaxCacheSize < 1:
		return errors.Wrapf(ErrInvalidConfig, "max_cache_size=%d", c.MaxCacheSize)
	case c.MaxCacheMemoryMB < 1:
		return errors.Wrapf(ErrInvalidConfig, "max_cache_memory_mb=%d", c.MaxCacheMemoryMB)
	case !(c.FastApproxThreshold > 0) || math32.IsInf(c.FastApproxThreshold, 0):
		return errors.Wrapf(ErrInvalidConfig, "fast_approx_threshold=%v", c.FastApproxThreshold)
	case c.GPUThresholdPixels < 0:
		return errors.Wrapf(ErrInvalidConfig, "gpu_threshold_pixels=%d", c.GPUThresholdPixels)
	case c.Workers < 0:
		return errors.Wrapf(ErrInvalidConfig, "workers=%d", c.Workers)
	case c.GPUFenceTimeout < 0:
		return errors.Wrapf(ErrInvalidConfig, "gpu_fence_timeout=%v", c.GPUFenceTimeout)
	}
	return nil
}

func (c Config) optimizerConfig() optimizer.Config {
	return optimizer.Config{
		LargeImagePixels:  c.GPUThresholdPixels,
		LargeSpatialSigma: c.FastApproxThreshold,
	}
}

// LoadConfig reads a configuration file. Files ending in .json are decoded as
// JSON, anything else as YAML. Omitted fields keep their DefaultConfig value.
//
// Arguments:
//   - path: The configuration file.
//
// Returns:
//   - Config: The validated configuration.
//   - error: If the file cannot be read, decoded or validated.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// ParseConfig decodes data as JSON or YAML on top of DefaultConfig.
func ParseConfig(data []byte, isJSON bool) (Config, error) {
	cfg := DefaultConfig()
	if isJSON {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "decode json config")
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "decode yaml config")
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
