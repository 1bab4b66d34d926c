// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// defaultSubmitTimeout bounds the fence wait in Submit.
const defaultSubmitTimeout = 5 * time.Second

// Device implements gpucore.Device using a HAL device and queue.
//
// Thread Safety: resource creation and destruction are safe for concurrent
// use. Command recording is single-goroutine.
type Device struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue
	closed bool

	// release tears down objects this Device opened itself (instance,
	// device). Nil when the HAL device is borrowed.
	release func()

	submitTimeout time.Duration

	// ID generation
	nextID atomic.Uint64

	buffers          map[gpucore.BufferID]bufferEntry
	textures         map[gpucore.TextureID]textureEntry
	samplers         map[gpucore.SamplerID]hal.Sampler
	shaderModules    map[gpucore.ShaderModuleID]hal.ShaderModule
	bindGroupLayouts map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts  map[gpucore.PipelineLayoutID]hal.PipelineLayout
	renderPipelines  map[gpucore.RenderPipelineID]hal.RenderPipeline
	bindGroups       map[gpucore.BindGroupID]hal.BindGroup
}

type bufferEntry struct {
	buf  hal.Buffer
	size uint64
}

// textureEntry holds a texture and its default view. Imported entries wrap
// a view owned by someone else and have no texture.
type textureEntry struct {
	tex      hal.Texture
	view     hal.TextureView
	desc     gpucore.TextureDesc
	imported bool
}

// NewDevice wraps an existing HAL device and queue. The caller keeps
// ownership of both; Close releases only resources created through the
// returned Device.
func NewDevice(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	d := &Device{
		device:           device,
		queue:            queue,
		submitTimeout:    defaultSubmitTimeout,
		buffers:          make(map[gpucore.BufferID]bufferEntry),
		textures:         make(map[gpucore.TextureID]textureEntry),
		samplers:         make(map[gpucore.SamplerID]hal.Sampler),
		shaderModules:    make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]hal.PipelineLayout),
		renderPipelines:  make(map[gpucore.RenderPipelineID]hal.RenderPipeline),
		bindGroups:       make(map[gpucore.BindGroupID]hal.BindGroup),
	}

	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)
	return d, nil
}

// newID generates a unique resource ID.
func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// SetSubmitTimeout changes how long Submit waits for the GPU.
func (d *Device) SetSubmitTimeout(timeout time.Duration) {
	d.mu.Lock()
	d.submitTimeout = timeout
	d.mu.Unlock()
}

// HAL returns the underlying HAL device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) {
	return d.device, d.queue
}

// === Shader modules ===

// CreateShaderModule creates a shader module from WGSL or SPIR-V.
func (d *Device) CreateShaderModule(desc *gpucore.ShaderModuleDesc) (gpucore.ShaderModuleID, error) {
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	src := hal.ShaderSource{WGSL: desc.WGSL}
	if len(desc.SPIRV) > 0 {
		src = hal.ShaderSource{SPIRV: desc.SPIRV}
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: src,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create shader module %q: %w", desc.Label, err)
	}

	id := gpucore.ShaderModuleID(d.newID())
	d.mu.Lock()
	d.shaderModules[id] = module
	d.mu.Unlock()
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	m, ok := d.shaderModules[id]
	delete(d.shaderModules, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyShaderModule(m)
	}
}

// === Buffers ===

// CreateBuffer allocates a GPU buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create buffer %q (%d bytes): %w", desc.Label, desc.Size, err)
	}

	id := gpucore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = bufferEntry{buf: buf, size: desc.Size}
	d.mu.Unlock()
	return id, nil
}

// WriteBuffer uploads data into a buffer.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.RLock()
	e, ok := d.buffers[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("write buffer %d: %w", id, ErrUnknownResource)
	}
	if offset+uint64(len(data)) > e.size {
		return fmt.Errorf("write buffer %d: %d bytes at offset %d exceed size %d", id, len(data), offset, e.size)
	}
	d.queue.WriteBuffer(e.buf, offset, data)
	return nil
}

// DestroyBuffer releases a GPU buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	e, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBuffer(e.buf)
	}
}

// === Textures ===

// CreateTexture allocates a 2D texture and its default view.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("create texture %q %dx%d: %w", desc.Label, desc.Width, desc.Height, ErrInvalidDimensions)
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        desc.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return gpucore.InvalidID, fmt.Errorf("create texture view %q: %w", desc.Label, err)
	}

	id := gpucore.TextureID(d.newID())
	d.mu.Lock()
	d.textures[id] = textureEntry{tex: tex, view: view, desc: *desc}
	d.mu.Unlock()
	logging.L().Debug("native: texture created", "label", desc.Label, "id", id, "w", desc.Width, "h", desc.Height)
	return id, nil
}

// ImportView registers a texture view owned by the caller, such as a
// window surface view, so it can be used as a render target. The returned
// ID is valid until ForgetView; the view is never destroyed by Device.
func (d *Device) ImportView(view hal.TextureView, width, height uint32, format gputypes.TextureFormat) (gpucore.TextureID, error) {
	if view == nil {
		return gpucore.InvalidID, fmt.Errorf("import view: %w", ErrUnknownResource)
	}
	id := gpucore.TextureID(d.newID())
	d.mu.Lock()
	d.textures[id] = textureEntry{
		view:     view,
		desc:     gpucore.TextureDesc{Label: "imported", Width: width, Height: height, Format: format},
		imported: true,
	}
	d.mu.Unlock()
	return id, nil
}

// ForgetView drops an imported view without destroying it.
func (d *Device) ForgetView(id gpucore.TextureID) {
	d.mu.Lock()
	if e, ok := d.textures[id]; ok && e.imported {
		delete(d.textures, id)
	}
	d.mu.Unlock()
}

// WriteTexture uploads tightly packed pixel rows into a texture.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) error {
	d.mu.RLock()
	e, ok := d.textures[id]
	d.mu.RUnlock()
	if !ok || e.imported {
		return fmt.Errorf("write texture %d: %w", id, ErrUnknownResource)
	}
	bpp := bytesPerPixel(e.desc.Format)
	want := uint64(e.desc.Width) * uint64(e.desc.Height) * uint64(bpp)
	if uint64(len(data)) != want {
		return fmt.Errorf("write texture %q: got %d bytes, want %d", e.desc.Label, len(data), want)
	}
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  e.tex,
			MipLevel: 0,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  e.desc.Width * bpp,
			RowsPerImage: e.desc.Height,
		},
		&hal.Extent3D{Width: e.desc.Width, Height: e.desc.Height, DepthOrArrayLayers: 1},
	)
	return nil
}

// TextureDesc returns the descriptor a texture was created with.
func (d *Device) TextureDesc(id gpucore.TextureID) (gpucore.TextureDesc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.textures[id]
	return e.desc, ok
}

// DestroyTexture releases a texture and its view. Imported views are only
// forgotten.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	e, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if !ok || e.imported {
		return
	}
	d.device.DestroyTextureView(e.view)
	d.device.DestroyTexture(e.tex)
}

// === Samplers ===

// CreateSampler creates a texture sampler.
func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	sampler, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressMode,
		AddressModeV: desc.AddressMode,
		AddressModeW: desc.AddressMode,
		MagFilter:    desc.Filter,
		MinFilter:    desc.Filter,
		MipmapFilter: desc.Filter,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create sampler %q: %w", desc.Label, err)
	}

	id := gpucore.SamplerID(d.newID())
	d.mu.Lock()
	d.samplers[id] = sampler
	d.mu.Unlock()
	return id, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	s, ok := d.samplers[id]
	delete(d.samplers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroySampler(s)
	}
}

// === Layouts and pipelines ===

// CreateBindGroupLayout creates a bind group layout.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = convertLayoutEntry(e)
	}
	layout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create bind group layout %q: %w", desc.Label, err)
	}

	id := gpucore.BindGroupLayoutID(d.newID())
	d.mu.Lock()
	d.bindGroupLayouts[id] = layout
	d.mu.Unlock()
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	l, ok := d.bindGroupLayouts[id]
	delete(d.bindGroupLayouts, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBindGroupLayout(l)
	}
}

// CreatePipelineLayout creates a pipeline layout.
func (d *Device) CreatePipelineLayout(desc *gpucore.PipelineLayoutDesc) (gpucore.PipelineLayoutID, error) {
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.RLock()
	layouts := make([]hal.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, lid := range desc.BindGroupLayouts {
		l, ok := d.bindGroupLayouts[lid]
		if !ok {
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("pipeline layout %q: bind group layout %d: %w", desc.Label, lid, ErrUnknownResource)
		}
		layouts[i] = l
	}
	d.mu.RUnlock()

	layout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create pipeline layout %q: %w", desc.Label, err)
	}

	id := gpucore.PipelineLayoutID(d.newID())
	d.mu.Lock()
	d.pipelineLayouts[id] = layout
	d.mu.Unlock()
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.mu.Lock()
	l, ok := d.pipelineLayouts[id]
	delete(d.pipelineLayouts, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyPipelineLayout(l)
	}
}

// CreateRenderPipeline builds a render pipeline.
func (d *Device) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.RLock()
	layout, okL := d.pipelineLayouts[desc.Layout]
	vs, okV := d.shaderModules[desc.VertexModule]
	fs, okF := d.shaderModules[desc.FragmentModule]
	d.mu.RUnlock()
	if !okL || !okV || !okF {
		return gpucore.InvalidID, fmt.Errorf("render pipeline %q: layout or shader module: %w", desc.Label, ErrUnknownResource)
	}

	targets := make([]gputypes.ColorTargetState, len(desc.ColorFormats))
	for i, f := range desc.ColorFormats {
		targets[i] = gputypes.ColorTargetState{
			Format:    f,
			WriteMask: gputypes.ColorWriteMaskAll,
		}
	}

	halDesc := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexEntry,
			Buffers:    desc.VertexBuffers,
		},
		Fragment: &hal.FragmentState{
			Module:     fs,
			EntryPoint: desc.FragmentEntry,
			Targets:    targets,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: desc.Topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.DepthFormat != gputypes.TextureFormatUndefined {
		halDesc.DepthStencil = depthState(desc)
	}

	pipeline, err := d.device.CreateRenderPipeline(halDesc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create render pipeline %q: %w", desc.Label, err)
	}

	id := gpucore.RenderPipelineID(d.newID())
	d.mu.Lock()
	d.renderPipelines[id] = pipeline
	d.mu.Unlock()
	return id, nil
}

// depthState maps the read/write flags onto a depth-stencil state.
// Reading depth means testing against it; a pass that writes without
// reading always passes the test.
func depthState(desc *gpucore.RenderPipelineDesc) *hal.DepthStencilState {
	compare := gputypes.CompareFunctionAlways
	if desc.DepthRead {
		compare = gputypes.CompareFunctionLess
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	return &hal.DepthStencilState{
		Format:            desc.DepthFormat,
		DepthWriteEnabled: desc.DepthWrite,
		DepthCompare:      compare,
		StencilFront:      keep,
		StencilBack:       keep,
	}
}

// DestroyRenderPipeline releases a render pipeline.
func (d *Device) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	d.mu.Lock()
	p, ok := d.renderPipelines[id]
	delete(d.renderPipelines, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyRenderPipeline(p)
	}
}

// === Bind groups ===

// CreateBindGroup creates a bind group.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.RLock()
	layout, ok := d.bindGroupLayouts[desc.Layout]
	if !ok {
		d.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("bind group %q: layout %d: %w", desc.Label, desc.Layout, ErrUnknownResource)
	}
	entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry, err := d.convertBindGroupEntry(e)
		if err != nil {
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("bind group %q: %w", desc.Label, err)
		}
		entries[i] = entry
	}
	d.mu.RUnlock()

	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create bind group %q: %w", desc.Label, err)
	}

	id := gpucore.BindGroupID(d.newID())
	d.mu.Lock()
	d.bindGroups[id] = group
	d.mu.Unlock()
	return id, nil
}

// convertBindGroupEntry resolves a resource reference to its HAL handle.
// Caller must hold d.mu for reading.
func (d *Device) convertBindGroupEntry(e gpucore.BindGroupEntry) (gputypes.BindGroupEntry, error) {
	result := gputypes.BindGroupEntry{Binding: e.Binding}
	switch e.Resource.Kind {
	case gpucore.ResourceBuffer:
		b, ok := d.buffers[gpucore.BufferID(e.Resource.ID)]
		if !ok {
			return result, fmt.Errorf("binding %d: buffer %d: %w", e.Binding, e.Resource.ID, ErrUnknownResource)
		}
		size := e.Size
		if size == 0 {
			size = b.size
		}
		result.Resource = gputypes.BufferBinding{Buffer: b.buf.NativeHandle(), Offset: 0, Size: size}
	case gpucore.ResourceTexture:
		t, ok := d.textures[gpucore.TextureID(e.Resource.ID)]
		if !ok {
			return result, fmt.Errorf("binding %d: texture %d: %w", e.Binding, e.Resource.ID, ErrUnknownResource)
		}
		result.Resource = gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}
	case gpucore.ResourceSampler:
		s, ok := d.samplers[gpucore.SamplerID(e.Resource.ID)]
		if !ok {
			return result, fmt.Errorf("binding %d: sampler %d: %w", e.Binding, e.Resource.ID, ErrUnknownResource)
		}
		result.Resource = gputypes.SamplerBinding{Sampler: s.NativeHandle()}
	default:
		return result, fmt.Errorf("binding %d: resource kind %d: %w", e.Binding, e.Resource.Kind, ErrUnknownResource)
	}
	return result, nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	g, ok := d.bindGroups[id]
	delete(d.bindGroups, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBindGroup(g)
	}
}

// === Lifecycle ===

// Stats reports live resource counts, for leak checks.
type Stats struct {
	Buffers, Textures, Samplers, ShaderModules   int
	BindGroupLayouts, PipelineLayouts, Pipelines int
	BindGroups                                   int
}

// Stats returns live resource counts.
func (d *Device) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{
		Buffers:          len(d.buffers),
		Textures:         len(d.textures),
		Samplers:         len(d.samplers),
		ShaderModules:    len(d.shaderModules),
		BindGroupLayouts: len(d.bindGroupLayouts),
		PipelineLayouts:  len(d.pipelineLayouts),
		Pipelines:        len(d.renderPipelines),
		BindGroups:       len(d.bindGroups),
	}
}

// Close destroys every resource still owned by the Device and, if the
// Device opened its HAL device itself, the device and instance too.
// Close is idempotent.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	// Destroy in dependency order: users before the objects they reference.
	for id := range d.bindGroups {
		d.DestroyBindGroup(id)
	}
	for id := range d.renderPipelines {
		d.DestroyRenderPipeline(id)
	}
	for id := range d.pipelineLayouts {
		d.DestroyPipelineLayout(id)
	}
	for id := range d.bindGroupLayouts {
		d.DestroyBindGroupLayout(id)
	}
	for id := range d.shaderModules {
		d.DestroyShaderModule(id)
	}
	for id := range d.samplers {
		d.DestroySampler(id)
	}
	for id := range d.textures {
		d.DestroyTexture(id)
	}
	for id := range d.buffers {
		d.DestroyBuffer(id)
	}

	if d.release != nil {
		d.release()
		d.release = nil
	}
}

func (d *Device) checkOpen() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

// convertLayoutEntry maps a gpucore layout entry onto the HAL layout type.
func convertLayoutEntry(e gpucore.BindGroupLayoutEntry) gputypes.BindGroupLayoutEntry {
	out := gputypes.BindGroupLayoutEntry{Binding: e.Binding, Visibility: e.Visibility}
	switch e.Kind {
	case gpucore.BindingUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case gpucore.BindingStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
	case gpucore.BindingTexture:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gpucore.BindingDepthTexture:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeDepth,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gpucore.BindingSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	case gpucore.BindingNonFilteringSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeNonFiltering}
	}
	return out
}

// bytesPerPixel returns the texel size for upload and readback formats.
func bytesPerPixel(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}
