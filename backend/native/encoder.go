// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// commandEncoder records one command buffer. Submit ends encoding, submits
// and waits on a fence, so every resource the recording referenced is free
// for reuse once Submit returns.
type commandEncoder struct {
	d       *Device
	encoder hal.CommandEncoder
	label   string
	open    *renderPass
	done    bool
}

// BeginCommands starts recording a command buffer.
func (d *Device) BeginCommands(label string) (gpucore.CommandEncoder, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label,
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return &commandEncoder{d: d, encoder: encoder, label: label}, nil
}

// BeginRenderPass starts a render pass on resolved attachment views.
func (e *commandEncoder) BeginRenderPass(desc *gpucore.RenderPassDesc) (gpucore.RenderPassEncoder, error) {
	if e.done {
		return nil, fmt.Errorf("render pass %q: encoder already finished", desc.Label)
	}
	if e.open != nil && !e.open.ended {
		return nil, fmt.Errorf("render pass %q: previous pass not ended", desc.Label)
	}

	e.d.mu.RLock()
	colors := make([]hal.RenderPassColorAttachment, len(desc.Color))
	for i, c := range desc.Color {
		t, ok := e.d.textures[c.Texture]
		if !ok {
			e.d.mu.RUnlock()
			return nil, fmt.Errorf("render pass %q: color %d texture %d: %w", desc.Label, i, c.Texture, ErrUnknownResource)
		}
		load := gputypes.LoadOpClear
		if c.Load {
			load = gputypes.LoadOpLoad
		}
		colors[i] = hal.RenderPassColorAttachment{
			View:       t.view,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: c.Clear,
		}
	}
	var depth *hal.RenderPassDepthStencilAttachment
	if desc.Depth != nil {
		t, ok := e.d.textures[desc.Depth.Texture]
		if !ok {
			e.d.mu.RUnlock()
			return nil, fmt.Errorf("render pass %q: depth texture %d: %w", desc.Label, desc.Depth.Texture, ErrUnknownResource)
		}
		load := gputypes.LoadOpClear
		if desc.Depth.Load {
			load = gputypes.LoadOpLoad
		}
		depth = &hal.RenderPassDepthStencilAttachment{
			View:            t.view,
			DepthLoadOp:     load,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: desc.Depth.Clear,
		}
	}
	e.d.mu.RUnlock()

	rp := e.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:                  desc.Label,
		ColorAttachments:       colors,
		DepthStencilAttachment: depth,
	})
	e.open = &renderPass{d: e.d, rp: rp}
	return e.open, nil
}

// Submit finishes the recording, submits it and waits for completion.
func (e *commandEncoder) Submit() error {
	if e.done {
		return fmt.Errorf("submit %q: encoder already finished", e.label)
	}
	e.done = true
	if e.open != nil && !e.open.ended {
		e.open.End()
	}

	cmdBuf, err := e.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer e.d.device.FreeCommandBuffer(cmdBuf)

	fence, err := e.d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer e.d.device.DestroyFence(fence)

	if err := e.d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	e.d.mu.RLock()
	timeout := e.d.submitTimeout
	e.d.mu.RUnlock()
	fenceOK, err := e.d.device.Wait(fence, 1, timeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !fenceOK {
		return fmt.Errorf("wait for GPU after %v: %w", timeout, ErrGPUTimeout)
	}
	return nil
}

// Discard abandons the recording.
func (e *commandEncoder) Discard() {
	if e.done {
		return
	}
	e.done = true
	if e.open != nil && !e.open.ended {
		e.open.End()
	}
	e.encoder.DiscardEncoding()
}

// renderPass forwards draw commands to a HAL render pass encoder,
// resolving IDs through the owning Device. Unknown IDs are skipped; the
// caches only hand out live IDs.
type renderPass struct {
	d     *Device
	rp    hal.RenderPassEncoder
	ended bool
}

func (p *renderPass) SetPipeline(id gpucore.RenderPipelineID) {
	p.d.mu.RLock()
	pl, ok := p.d.renderPipelines[id]
	p.d.mu.RUnlock()
	if ok {
		p.rp.SetPipeline(pl)
	}
}

func (p *renderPass) SetBindGroup(index uint32, id gpucore.BindGroupID) {
	p.d.mu.RLock()
	g, ok := p.d.bindGroups[id]
	p.d.mu.RUnlock()
	if ok {
		p.rp.SetBindGroup(index, g, nil)
	}
}

func (p *renderPass) SetVertexBuffer(slot uint32, id gpucore.BufferID, offset uint64) {
	p.d.mu.RLock()
	b, ok := p.d.buffers[id]
	p.d.mu.RUnlock()
	if ok {
		p.rp.SetVertexBuffer(slot, b.buf, offset)
	}
}

func (p *renderPass) SetIndexBuffer(id gpucore.BufferID, format gputypes.IndexFormat, offset uint64) {
	p.d.mu.RLock()
	b, ok := p.d.buffers[id]
	p.d.mu.RUnlock()
	if ok {
		p.rp.SetIndexBuffer(b.buf, format, offset)
	}
}

func (p *renderPass) SetViewport(v gpucore.Viewport) {
	p.rp.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
}

func (p *renderPass) SetScissorRect(s gpucore.Scissor) {
	p.rp.SetScissorRect(s.X, s.Y, s.Width, s.Height)
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.rp.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.rp.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *renderPass) End() {
	if p.ended {
		return
	}
	p.ended = true
	p.rp.End()
}
