package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nvr-ai/go-darkroom/benchmark"
	"github.com/nvr-ai/go-darkroom/gpu"
	"github.com/nvr-ai/go-darkroom/optimizer"
	"github.com/nvr-ai/go-darkroom/profiler"
)

func main() {
	var (
		scenarioFile  = flag.String("scenarios", "", "Path to a JSON or YAML scenario file")
		outputDir     = flag.String("output", "./benchmark_results", "Output directory for results")
		quick         = flag.Bool("quick", false, "Run quick benchmark scenarios")
		comprehensive = flag.Bool("comprehensive", false, "Run comprehensive benchmark scenarios")
		sweep         = flag.Bool("sweep", false, "Run the Fast approximation sigma sweep")
		workers       = flag.Int("workers", 0, "CPU worker count (0 = min(4, NumCPU))")
		noGPU         = flag.Bool("no-gpu", false, "Do not initialise the GPU")
		compare       = flag.Bool("compare", true, "Measure error against the Standard filter")
		fenceTimeout  = flag.Duration("fence-timeout", gpu.DefaultFenceTimeout, "GPU fence wait bound")
		timeout       = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
		verbose       = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	gpu.SetLogger(logger)

	args := benchmark.NewSuiteArgs{
		Optimizer:         optimizer.DefaultConfig(),
		Workers:           *workers,
		OutputPath:        *outputDir,
		CompareToStandard: *compare,
		Logger:            logger,
	}
	if !*noGPU {
		device := gpu.NewContext(gpu.Config{FenceTimeout: *fenceTimeout})
		defer device.Shutdown()
		args.GPU = device
	}

	suite := benchmark.NewSuite(args)
	defer suite.Close()

	predefined := &benchmark.PredefinedScenarios{}
	add := func(set *benchmark.ScenarioSet, label string) {
		for _, scenario := range set.Scenarios {
			suite.AddScenario(scenario)
		}
		fmt.Printf("Added %d %s scenarios\n", len(set.Scenarios), label)
	}

	if *scenarioFile != "" {
		scenarioSet, err := benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			log.Fatalf("Failed to load scenario file: %v", err)
		}
		add(scenarioSet, filepath.Base(*scenarioFile))
	} else {
		if *quick {
			add(predefined.GetQuickScenarios(), "quick")
		}
		if *comprehensive {
			add(predefined.GetComprehensiveScenarios(), "comprehensive")
		}
		if *sweep {
			add(predefined.GetSigmaSweepScenarios(benchmark.Resolution{Width: 1920, Height: 1080, Name: "1920x1080"}), "sigma sweep")
		}
		// If no specific scenarios requested, use quick by default
		if !*quick && !*comprehensive && !*sweep {
			add(predefined.GetQuickScenarios(), "default quick")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Println("Starting benchmark execution...")
	start := time.Now()

	if err := suite.RunAllScenarios(ctx); err != nil {
		log.Fatalf("Benchmark execution failed: %v", err)
	}

	fmt.Printf("Benchmark completed in %v\n", time.Since(start))

	results := suite.GetResults()
	fmt.Printf("\n=== BENCHMARK RESULTS SUMMARY ===\n")
	fmt.Printf("Total scenarios: %d\n", len(results))
	fmt.Printf("Results saved to: %s\n", *outputDir)

	var best benchmark.PerformanceMetrics
	for _, result := range results {
		if result.MegapixelsPerSecond > best.MegapixelsPerSecond {
			best = result
		}
		fmt.Printf("  %s: %s, %.2f MP/s, mean %v, MAE %.5f (%s allocated)\n",
			result.Scenario.Name,
			result.Implementation,
			result.MegapixelsPerSecond,
			result.MeanDuration(),
			result.MeanAbsoluteError,
			profiler.FormatBytes(result.MemoryStats.TotalAllocBytes))
	}

	if best.Scenario.Name != "" {
		fmt.Printf("\nFastest scenario: %s (%.2f MP/s)\n", best.Scenario.Name, best.MegapixelsPerSecond)
	}
}

func init() {
	flag.Usage = func() {
		name := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", name)
		fmt.Fprintf(os.Stderr, "Throughput and accuracy benchmarks for the bilateral filter implementations.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -quick\n", name)
		fmt.Fprintf(os.Stderr, "  %s -comprehensive -no-gpu -workers 8\n", name)
		fmt.Fprintf(os.Stderr, "  %s -scenarios ./scenarios.yaml -output ./results\n", name)
	}
}
