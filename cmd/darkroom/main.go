package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-darkroom/encode"
	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
	"github.com/nvr-ai/go-darkroom/optimizer"
	"github.com/nvr-ai/go-darkroom/processor"
	"github.com/nvr-ai/go-darkroom/util"
)

func main() {
	var (
		input      = flag.String("in", "", "Input image file or directory")
		outputDir  = flag.String("out", "./darkroom_out", "Output directory")
		format     = flag.String("format", ".png", "Output extension: .png, .tiff, .jpg, .webp or .hdr")
		configFile = flag.String("config", "", "Path to processor configuration (YAML or JSON)")
		mode       = flag.String("mode", "filter", "Operation: filter, detail or clarity")
		spatial    = flag.Float64("spatial", 3, "Spatial sigma in pixels")
		rangeSigma = flag.Float64("range", 0.1, "Range sigma in linear luminance units")
		amount     = flag.Float64("amount", 0.5, "Clarity amount")
		impl       = flag.String("impl", "auto", "Implementation: auto, standard_cpu, fast_approximation or gpu_vulkan")
		jobs       = flag.Int("jobs", runtime.NumCPU(), "Images processed concurrently")
		preview    = flag.Uint("preview", 0, "Also write a preview no larger than this many pixels (0 disables)")
		noDither   = flag.Bool("no-dither", false, "Disable error diffusion for 8-bit outputs")
		timeout    = flag.Duration("timeout", 30*time.Minute, "Overall timeout")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("Input path is required (-in)")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := processor.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = processor.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	hint, ok := optimizer.ParseImplementation(*impl)
	if !ok {
		log.Fatalf("Unknown implementation %q", *impl)
	}
	params := kernels.Params{SpatialSigma: float32(*spatial), RangeSigma: float32(*rangeSigma)}
	if err := params.Validate(); err != nil {
		log.Fatalf("Invalid filter parameters: %v", err)
	}

	files, err := collect(*input)
	if err != nil {
		log.Fatalf("Failed to load images: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("No supported images found in %s", *input)
	}
	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	proc, err := processor.New(cfg, processor.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create processor: %v", err)
	}
	defer proc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	j := job{
		proc:    proc,
		params:  params,
		hint:    hint,
		mode:    *mode,
		amount:  float32(*amount),
		outDir:  *outputDir,
		format:  *format,
		preview: *preview,
		encode:  encode.Options{Dither: !*noDither},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*jobs, 1))
	for _, f := range files {
		g.Go(func() error {
			return j.run(gctx, f)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Processing failed: %v", err)
	}

	report, _ := json.MarshalIndent(struct {
		Stats   processor.Stats `json:"stats"`
		Cache   any             `json:"cache"`
		Timings any             `json:"timings"`
	}{proc.Stats(), proc.CacheStats(), proc.Timings()}, "", "  ")
	fmt.Println(string(report))
}

func collect(path string) ([]util.ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return util.LoadDirectoryImageFiles(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []util.ImageFile{{Path: path, Data: data}}, nil
}

type job struct {
	proc    *processor.Processor
	params  kernels.Params
	hint    optimizer.Implementation
	mode    string
	amount  float32
	outDir  string
	format  string
	preview uint
	encode  encode.Options
}

func (j job) run(ctx context.Context, f util.ImageFile) error {
	start := time.Now()
	lin, _, err := util.DecodeLinear(f.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}

	res, err := j.apply(ctx, lin)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}

	out, err := j.toImage(res)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	dst := filepath.Join(j.outDir, f.Name()+j.format)
	if err := write(dst, out); err != nil {
		return err
	}
	if j.preview > 0 {
		if err := write(filepath.Join(j.outDir, f.Name()+"_preview.png"), encode.Preview(res.ToNRGBA64(), j.preview)); err != nil {
			return err
		}
	}

	slog.Info("darkroom: wrote image", "src", f.Path, "dst", dst,
		"width", lin.Width, "height", lin.Height, "elapsed", time.Since(start))
	return nil
}

func (j job) apply(ctx context.Context, lin *images.LinearImage) (*images.LinearImage, error) {
	switch j.mode {
	case "filter":
		out, _, err := j.proc.ProcessWithHint(ctx, lin, j.params, j.hint)
		return out, err
	case "detail":
		detail, err := j.proc.ExtractDetail(ctx, lin, j.params)
		if err != nil {
			return nil, err
		}
		// Centre the signed detail layer on mid grey for display.
		grey, err := images.NewUniform(lin.Width, lin.Height, 0.5, 0.5, 0.5)
		if err != nil {
			return nil, err
		}
		return kernels.AddDetail(grey, detail, 1)
	case "clarity":
		return j.proc.Clarity(ctx, lin, j.params, j.amount)
	default:
		return nil, fmt.Errorf("unknown mode %q", j.mode)
	}
}

// toImage keeps linear light for .hdr, 16 bits for formats that carry them
// and dithers to 8 bits for the rest.
func (j job) toImage(lin *images.LinearImage) (image.Image, error) {
	switch j.format {
	case ".hdr":
		return util.HDR(lin), nil
	case ".png", ".tif", ".tiff":
		return lin.ToNRGBA64(), nil
	default:
		return encode.ToNRGBA(lin, j.encode)
	}
}

func write(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := util.Encode(f, path, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
