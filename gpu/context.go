//go:build !nogpu

// Package gpu - Vulkan compute backend for the bilateral filter.
//
// A Context owns one device and one compiled pipeline. Initialisation is lazy
// and attempted exactly once; a failed attempt leaves the Context permanently
// unavailable and every Filter call returns ErrUnavailable so callers can fall
// back to a CPU implementation.
package gpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Context holds the device, queue and compiled bilateral pipeline.
type Context struct {
	cfg Config

	initOnce sync.Once
	state    atomic.Int32
	initErr  error

	// mu serialises Filter and Shutdown. One submission is in flight at a time.
	mu sync.Mutex

	instance   hal.Instance
	device     hal.Device
	queue      hal.Queue
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	adapterName string
}

// NewContext returns an uninitialised Context. No device work happens until
// the first call to Init, Available or Filter.
func NewContext(cfg Config) *Context {
	return &Context{cfg: cfg}
}

// State reports the current lifecycle state.
func (c *Context) State() State {
	return State(c.state.Load())
}

// AdapterName is the name of the selected adapter, empty until Ready.
func (c *Context) AdapterName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapterName
}

// SetFenceTimeout changes the bound on each fence wait. It applies to the
// next Filter call.
func (c *Context) SetFenceTimeout(d time.Duration) {
	c.mu.Lock()
	c.cfg.FenceTimeout = d
	c.mu.Unlock()
}

// Available initialises the context on first use and reports whether it is
// ready to filter.
func (c *Context) Available() bool {
	return c.Init() == nil
}

// Init performs the one-shot device and pipeline setup.
//
// Returns:
//   - error: nil when Ready, otherwise an error wrapping ErrUnavailable. The
//     same result is returned on every subsequent call.
func (c *Context) Init() error {
	c.initOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.state.Store(int32(StateInitializing))
		if err := c.initDevice(); err != nil {
			c.releaseLocked()
			c.initErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			c.state.Store(int32(StateUnavailable))
			slogger().Warn("gpu: bilateral backend unavailable", "error", err)
			return
		}
		c.state.Store(int32(StateReady))
		slogger().Info("gpu: bilateral backend ready", "adapter", c.adapterName)
	})
	if c.initErr != nil {
		return c.initErr
	}
	if c.State() != StateReady {
		return ErrUnavailable
	}
	return nil
}

// Shutdown releases every device object. The context stays unavailable
// afterwards.
func (c *Context) Shutdown() {
	// Consume the once so a later Init cannot resurrect the device.
	c.initOnce.Do(func() {})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.state.Store(int32(StateUnavailable))
}

func (c *Context) initDevice() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	c.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			selected = &adapters[i]
			break
		}
		if selected == nil && adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	c.device = openDev.Device
	c.queue = openDev.Queue
	c.adapterName = selected.Info.Name

	return c.createPipeline()
}

func (c *Context) createPipeline() error {
	shader, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "bilateral_shader",
		Source: hal.ShaderSource{WGSL: bilateralWGSL},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	c.shader = shader

	bindLayout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "bilateral_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			storageEntry(0, gputypes.BufferBindingTypeReadOnlyStorage),
			storageEntry(1, gputypes.BufferBindingTypeStorage),
			storageEntry(2, gputypes.BufferBindingTypeUniform),
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	c.bindLayout = bindLayout

	pipeLayout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "bilateral_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	c.pipeLayout = pipeLayout

	pipeline, err := c.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "bilateral_pipeline",
		Layout: pipeLayout,
		Compute: hal.ComputeState{
			Module:     shader,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	c.pipeline = pipeline
	return nil
}

func storageEntry(binding uint32, kind gputypes.BufferBindingType) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: kind},
	}
}

// releaseLocked destroys whatever has been created so far, in reverse order.
func (c *Context) releaseLocked() {
	if c.device != nil {
		if c.pipeline != nil {
			c.device.DestroyComputePipeline(c.pipeline)
			c.pipeline = nil
		}
		if c.pipeLayout != nil {
			c.device.DestroyPipelineLayout(c.pipeLayout)
			c.pipeLayout = nil
		}
		if c.bindLayout != nil {
			c.device.DestroyBindGroupLayout(c.bindLayout)
			c.bindLayout = nil
		}
		if c.shader != nil {
			c.device.DestroyShaderModule(c.shader)
			c.shader = nil
		}
		c.device.Destroy()
		c.device = nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
	c.queue = nil
}
