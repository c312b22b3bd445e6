//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
)

// Filter runs the bilateral kernel on the device and writes the result to out.
//
// Arguments:
//   - in: The source image.
//   - out: The destination, same size as in. Untouched on error.
//   - p: The filter sigmas.
//
// Returns:
//   - error: ErrUnavailable when the device never initialised, ErrFenceTimeout
//     when the submission did not finish in time, or any device error. Invalid
//     arguments are reported with the kernels/images sentinels.
func (c *Context) Filter(in, out *images.LinearImage, p kernels.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return err
	}
	if err := out.Validate(); err != nil {
		return err
	}
	if !in.SameSize(out) {
		return fmt.Errorf("%w: input %dx%d, output %dx%d",
			images.ErrSizeMismatch, in.Width, in.Height, out.Width, out.Height)
	}
	if err := c.Init(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != StateReady {
		return ErrUnavailable
	}

	result, err := c.run(in, p)
	if err != nil {
		slogger().Warn("gpu: bilateral dispatch failed", "width", in.Width, "height", in.Height, "error", err)
		return err
	}
	return out.Deinterleave(result)
}

// run executes one upload, dispatch and readback. Every transient object is
// released before it returns.
func (c *Context) run(in *images.LinearImage, p kernels.Params) ([]float32, error) {
	size := uint64(in.Pixels()) * 3 * 4

	input, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "bilateral_input",
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create input buffer: %w", err)
	}
	defer c.device.DestroyBuffer(input)

	output, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "bilateral_output",
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create output buffer: %w", err)
	}
	defer c.device.DestroyBuffer(output)

	uniform := paramsBytes(in.Width, in.Height, p.SpatialSigma, p.RangeSigma)
	params, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "bilateral_params",
		Size:  uint64(len(uniform)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create params buffer: %w", err)
	}
	defer c.device.DestroyBuffer(params)

	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "bilateral_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	if err := c.queue.WriteBuffer(input, 0, float32SliceToBytes(in.Interleave())); err != nil {
		return nil, fmt.Errorf("upload input: %w", err)
	}
	if err := c.queue.WriteBuffer(params, 0, uniform); err != nil {
		return nil, fmt.Errorf("upload params: %w", err)
	}

	bindGroup, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "bilateral_bind_group",
		Layout: c.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: input.NativeHandle(), Size: size}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: output.NativeHandle(), Size: size}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: params.NativeHandle(), Size: uint64(len(uniform))}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	defer c.device.DestroyBindGroup(bindGroup)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "bilateral",
	})
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	if err := encoder.BeginEncoding("bilateral"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	gx, gy := DispatchSize(in.Width, in.Height)
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "bilateral_pass"})
	pass.SetPipeline(c.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(gx, gy, 1)
	pass.End()

	encoder.CopyBufferToBuffer(output, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	fence, err := c.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	timeout := c.cfg.fenceTimeout()
	ok, err := c.device.Wait(fence, 1, timeout)
	if err != nil {
		return nil, fmt.Errorf("wait for fence: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w after %v", ErrFenceTimeout, timeout)
	}

	raw := make([]byte, size)
	if err := c.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("read staging buffer: %w", err)
	}
	return bytesToFloat32Slice(raw), nil
}
