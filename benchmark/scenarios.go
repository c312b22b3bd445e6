package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
	"github.com/nvr-ai/go-darkroom/optimizer"
)

// Resolution is the synthetic image size of a scenario.
type Resolution struct {
	Width  int    `json:"width"  yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	Name   string `json:"name"   yaml:"name"`
}

// Scenario is one benchmark configuration.
type Scenario struct {
	Name       string         `json:"name"        yaml:"name"`
	Resolution Resolution     `json:"resolution"  yaml:"resolution"`
	Params     kernels.Params `json:"params"      yaml:"params"`
	// Implementation is a name accepted by optimizer.ParseImplementation.
	Implementation string `json:"implementation" yaml:"implementation"`
	EnableFast     bool   `json:"enable_fast"    yaml:"enable_fast"`
	EnableGPU      bool   `json:"enable_gpu"     yaml:"enable_gpu"`
	Iterations     int    `json:"iterations"     yaml:"iterations"`
	WarmupRuns     int    `json:"warmup_runs"    yaml:"warmup_runs"`
}

// Hint resolves Implementation. Unknown names fall back to Auto.
func (s Scenario) Hint() optimizer.Implementation {
	impl, _ := optimizer.ParseImplementation(s.Implementation)
	return impl
}

// Validate rejects scenarios that cannot run.
func (s Scenario) Validate() error {
	if s.Resolution.Width <= 0 || s.Resolution.Height <= 0 {
		return errors.Wrapf(images.ErrInvalidDimensions, "scenario %s", s.Name)
	}
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %s: iterations must be positive", s.Name)
	}
	if _, ok := optimizer.ParseImplementation(s.Implementation); !ok {
		return errors.Errorf("scenario %s: unknown implementation %q", s.Name, s.Implementation)
	}
	return errors.Wrapf(s.Params.Validate(), "scenario %s", s.Name)
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:           name,
			Params:         kernels.Params{SpatialSigma: 3, RangeSigma: 0.1},
			Implementation: optimizer.Auto.String(),
			EnableFast:     true,
			EnableGPU:      true,
			Iterations:     10,
			WarmupRuns:     1,
		},
	}
}

// WithResolution sets the image resolution
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithParams sets the filter sigmas.
func (sb *ScenarioBuilder) WithParams(spatial, rangeSigma float32) *ScenarioBuilder {
	sb.scenario.Params = kernels.Params{SpatialSigma: spatial, RangeSigma: rangeSigma}
	return sb
}

// WithImplementation forces an implementation.
func (sb *ScenarioBuilder) WithImplementation(impl optimizer.Implementation) *ScenarioBuilder {
	sb.scenario.Implementation = impl.String()
	return sb
}

// WithFlags sets the optimizer feature flags.
func (sb *ScenarioBuilder) WithFlags(enableFast, enableGPU bool) *ScenarioBuilder {
	sb.scenario.EnableFast = enableFast
	sb.scenario.EnableGPU = enableGPU
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name"        yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios"   yaml:"scenarios"`
}

// PredefinedScenarios contains common benchmark scenario sets
type PredefinedScenarios struct{}

var cpuImplementations = []optimizer.Implementation{optimizer.StandardCPU, optimizer.FastApproximation}

// GetQuickScenarios compares the CPU implementations on 720p at a small and
// a large spatial sigma.
func (ps *PredefinedScenarios) GetQuickScenarios() *ScenarioSet {
	res, _ := images.GetResolutionByType(images.ResolutionTypeHD720p)
	scenarios := make([]Scenario, 0)
	for _, sigma := range []float32{2, 8} {
		for _, impl := range cpuImplementations {
			scenarios = append(scenarios,
				NewScenarioBuilder(fmt.Sprintf("%s_s%g", impl, sigma)).
					WithResolution(res.Pixels.Width, res.Pixels.Height).
					WithParams(sigma, 0.1).
					WithImplementation(impl).
					WithIterations(3).
					Build())
		}
	}
	return &ScenarioSet{
		Name:        "Quick",
		Description: "Standard vs Fast on 720p",
		Scenarios:   scenarios,
	}
}

// GetComprehensiveScenarios runs every implementation, including Auto, on
// every defined resolution and a spread of spatial sigmas.
func (ps *PredefinedScenarios) GetComprehensiveScenarios() *ScenarioSet {
	impls := append([]optimizer.Implementation{optimizer.Auto, optimizer.GPUVulkan}, cpuImplementations...)
	scenarios := make([]Scenario, 0)
	for _, res := range images.GetAllResolutions() {
		for _, sigma := range []float32{2, 5, 10, 20} {
			for _, impl := range impls {
				name := strings.ReplaceAll(fmt.Sprintf("%s_%s_s%g", res.Name, impl, sigma), " ", "_")
				scenarios = append(scenarios,
					NewScenarioBuilder(name).
						WithResolution(res.Pixels.Width, res.Pixels.Height).
						WithParams(sigma, 0.1).
						WithImplementation(impl).
						WithIterations(5).
						Build())
			}
		}
	}
	return &ScenarioSet{
		Name:        "Comprehensive",
		Description: "Every implementation on every resolution",
		Scenarios:   scenarios,
	}
}

// GetSigmaSweepScenarios measures how Fast tracks Standard as the spatial
// sigma crosses each downsample factor boundary.
func (ps *PredefinedScenarios) GetSigmaSweepScenarios(resolution Resolution) *ScenarioSet {
	scenarios := make([]Scenario, 0)
	for _, sigma := range []float32{4, 5, 8, 9, 16, 17, 32, 33} {
		scenarios = append(scenarios,
			NewScenarioBuilder(fmt.Sprintf("fast_%s_s%g", resolution.Name, sigma)).
				WithResolution(resolution.Width, resolution.Height).
				WithParams(sigma, 0.1).
				WithImplementation(optimizer.FastApproximation).
				WithIterations(2).
				Build())
	}
	return &ScenarioSet{
		Name:        "Sigma sweep",
		Description: "Fast approximation error at each downsample factor",
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet writes a scenario set as JSON, or YAML for .yaml/.yml files.
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(scenarioSet)
	} else {
		data, err = json.MarshalIndent(scenarioSet, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal scenario set: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	return nil
}

// LoadScenarioSet reads a scenario set written by SaveScenarioSet and
// validates every scenario.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenarioSet ScenarioSet
	if isYAML(filename) {
		err = yaml.Unmarshal(data, &scenarioSet)
	} else {
		err = json.Unmarshal(data, &scenarioSet)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario set: %w", err)
	}
	for _, s := range scenarioSet.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	return &scenarioSet, nil
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}
