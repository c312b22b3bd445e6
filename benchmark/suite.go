package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/chewxy/math32"
	"github.com/codahale/hdrhistogram"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
	"github.com/nvr-ai/go-darkroom/optimizer"
)

// Suite manages and executes benchmark scenarios
type Suite struct {
	scenarios []Scenario
	optimizer *optimizer.Optimizer
	workers   *workerpool.Pool
	outputDir string
	compare   bool
	logger    *slog.Logger
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	// GPU is optional; without it every GPU scenario falls back to the CPU.
	GPU optimizer.GPU `json:"-" yaml:"-"`
	// Optimizer defaults to optimizer.DefaultConfig when zero.
	Optimizer  optimizer.Config `json:"optimizer"  yaml:"optimizer"`
	Workers    int              `json:"workers"    yaml:"workers"`
	OutputPath string           `json:"outputPath" yaml:"outputPath"`
	// CompareToStandard measures every scenario's error against the Standard
	// filter. The reference run is not timed.
	CompareToStandard bool         `json:"compareToStandard" yaml:"compareToStandard"`
	Logger            *slog.Logger `json:"-"                 yaml:"-"`
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - args: The arguments for creating a new benchmark suite.
//
// Returns:
//   - *Suite: The benchmark suite. Close releases its worker pool.
func NewSuite(args NewSuiteArgs) *Suite {
	workers := kernels.NewWorkerPool(args.Workers)
	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := args.Optimizer
	if cfg == (optimizer.Config{}) {
		cfg = optimizer.DefaultConfig()
	}
	opt := optimizer.New(cfg, args.GPU, workers)
	opt.SetLogger(logger)

	return &Suite{
		optimizer: opt,
		workers:   workers,
		outputDir: args.OutputPath,
		compare:   args.CompareToStandard,
		logger:    logger,
		scenarios: make([]Scenario, 0),
		results:   make([]PerformanceMetrics, 0),
	}
}

// Close releases the worker pool.
func (bs *Suite) Close() {
	bs.workers.Close()
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// Scenarios returns a copy of the queued scenarios.
func (bs *Suite) Scenarios() []Scenario {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return append([]Scenario(nil), bs.scenarios...)
}

// RunScenario executes a single benchmark scenario
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	in, err := SyntheticImage(scenario.Resolution.Width, scenario.Resolution.Height, 1)
	if err != nil {
		return nil, err
	}
	out, err := images.NewLinearImage(in.Width, in.Height)
	if err != nil {
		return nil, err
	}
	hint := scenario.Hint()
	run := func() (optimizer.Implementation, error) {
		return bs.optimizer.Execute(in, out, scenario.Params, hint, scenario.EnableFast, scenario.EnableGPU)
	}

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	// Warmup runs
	for i := 0; i < scenario.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, _ = run()
	}

	// Capture initial memory stats
	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	failures := 0
	var used optimizer.Implementation
	latency := hdrhistogram.New(1, maxLatencyMicros, 3)
	samples := make([]float64, 0, scenario.Iterations)

	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		impl, err := run()
		elapsed := time.Since(start)
		if err != nil {
			failures++
			continue
		}
		used = impl
		_ = latency.RecordValue(max(1, elapsed.Microseconds()))
		samples = append(samples, float64(elapsed))

		metrics.TotalDuration += elapsed
		if metrics.MinDuration == 0 || elapsed < metrics.MinDuration {
			metrics.MinDuration = elapsed
		}
		if elapsed > metrics.MaxDuration {
			metrics.MaxDuration = elapsed
		}
	}

	// Capture final memory stats
	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	succeeded := scenario.Iterations - failures
	if succeeded > 0 && metrics.TotalDuration > 0 {
		mp := float64(in.Pixels()) / 1e6
		metrics.MegapixelsPerSecond = mp * float64(succeeded) / metrics.TotalDuration.Seconds()
	}
	if len(samples) > 0 {
		metrics.P50Duration = quantile(latency, 50)
		metrics.P95Duration = quantile(latency, 95)
		metrics.P99Duration = quantile(latency, 99)
	}
	if len(samples) > 1 {
		_, std := stat.MeanStdDev(samples, nil)
		metrics.StdDevDuration = time.Duration(std)
	}
	metrics.Implementation = used.String()
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)

	if bs.compare && succeeded > 0 && used != optimizer.StandardCPU {
		ref, err := kernels.Standard(in, scenario.Params, kernels.Options{Workers: bs.workers})
		if err != nil {
			return nil, errors.Wrap(err, "reference filter")
		}
		if metrics.MeanAbsoluteError, err = images.MeanAbsoluteError(out, ref); err != nil {
			return nil, err
		}
	}

	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
	}

	metrics.CPUStats = CPUMetrics{
		NumCPU:  runtime.NumCPU(),
		Workers: bs.workers.NumWorkers(),
	}

	bs.logger.Debug("scenario complete",
		"scenario", scenario.Name,
		"implementation", metrics.Implementation,
		"mean", metrics.MeanDuration(),
		"mpps", metrics.MegapixelsPerSecond)

	return metrics, nil
}

// maxLatencyMicros bounds the latency histogram at ten minutes per call.
const maxLatencyMicros = int64(10 * time.Minute / time.Microsecond)

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

// RunAllScenarios runs every queued scenario in order and saves the results
// when an output directory is configured. A scenario that fails is logged and
// skipped; cancellation stops the run.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	for _, scenario := range bs.Scenarios() {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			bs.logger.Warn("scenario failed", "scenario", scenario.Name, "error", err)
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()
	}

	if bs.outputDir == "" {
		return nil
	}
	return bs.SaveResults()
}

// GetResults returns a copy of all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}

// SaveResults writes results.json and summary.csv to the output directory.
func (bs *Suite) SaveResults() error {
	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	results := bs.GetResults()

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(bs.outputDir, "results.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	return bs.saveSummaryCSV(results)
}

func (bs *Suite) saveSummaryCSV(results []PerformanceMetrics) error {
	file, err := os.Create(filepath.Join(bs.outputDir, "summary.csv"))
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	_ = w.Write([]string{
		"scenario", "resolution", "spatial_sigma", "range_sigma", "requested",
		"implementation", "mean_ms", "min_ms", "max_ms", "p50_ms", "p95_ms", "p99_ms", "stddev_ms",
		"mp_per_sec", "mae", "error_rate",
	})
	for _, r := range results {
		_ = w.Write([]string{
			r.Scenario.Name,
			r.Scenario.Resolution.Name,
			strconv.FormatFloat(float64(r.Scenario.Params.SpatialSigma), 'g', -1, 32),
			strconv.FormatFloat(float64(r.Scenario.Params.RangeSigma), 'g', -1, 32),
			r.Scenario.Implementation,
			r.Implementation,
			millis(r.MeanDuration()),
			millis(r.MinDuration),
			millis(r.MaxDuration),
			millis(r.P50Duration),
			millis(r.P95Duration),
			millis(r.P99Duration),
			millis(r.StdDevDuration),
			strconv.FormatFloat(r.MegapixelsPerSecond, 'f', 3, 64),
			strconv.FormatFloat(r.MeanAbsoluteError, 'f', 6, 64),
			strconv.FormatFloat(r.ErrorRate, 'f', 3, 64),
		})
	}
	w.Flush()
	return w.Error()
}

func millis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}

// SyntheticImage returns a deterministic test card: a smooth diagonal
// gradient with hard vertical and horizontal steps and mild noise, so the
// filter has both flat regions to smooth and edges to preserve.
func SyntheticImage(width, height int, seed uint64) (*images.LinearImage, error) {
	img, err := images.NewLinearImage(width, height)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	span := float32(width + height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			base := float32(x+y) / span
			if x > width/2 {
				base = 1 - base
			}
			if (y/max(1, height/8))%2 == 1 {
				base *= 0.5
			}
			i := y*width + x
			img.R[i] = clamp01(base + noise(rng))
			img.G[i] = clamp01(base*0.9 + noise(rng))
			img.B[i] = clamp01(base*0.8 + 0.1 + noise(rng))
		}
	}
	return img, nil
}

func noise(rng *rand.Rand) float32 {
	return (rng.Float32() - 0.5) * 0.04
}

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
