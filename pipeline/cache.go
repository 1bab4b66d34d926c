// Package pipeline deduplicates render pipelines by structural spec.
//
// Pipeline creation is expensive because it involves shader compilation,
// layout creation and driver validation. [Cache] builds each distinct
// [Spec] at most once and hands the same pipeline to every draw object
// that asks for an equal spec:
//
//	cache := pipeline.NewCache(device, shaders)
//	id, err := cache.GetOrBuild(pipeline.Spec{
//	    VertexShader:   "shaders/final.vert.wgsl",
//	    FragmentShader: "shaders/final.frag.wgsl",
//	    VertexLayout:   mesh.PositionNormalLayout(),
//	    Topology:       gputypes.PrimitiveTopologyTriangleList,
//	    DepthRead:      true,
//	    DepthWrite:     true,
//	    Target:         pass.Target(),
//	})
//
// Entries are immutable and never invalidated. Changing any field of a
// spec, for example swapping the fragment shader for a debug view, makes a
// new entry; the old one stays cached and is reused when requested again.
//
// Bind group layouts are deduplicated by shape as well, so bind groups
// built against one pipeline's layout are valid for every pipeline that
// declares the same set shape.
package pipeline

import (
	"fmt"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/cache"
	"github.com/gogpu/framegraph/internal/logging"
)

// ShaderSource resolves a shader path to a device module.
type ShaderSource interface {
	Module(path string) (gpucore.ShaderModuleID, error)
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	label string
}

// WithLabel sets the debug label prefix of built objects.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// Cache caches render pipelines by Spec.
//
// Cache is safe for concurrent use.
type Cache struct {
	dev     gpucore.Device
	shaders ShaderSource
	label   string

	pipelines       *cache.Store[Key, gpucore.RenderPipelineID]
	layouts         *cache.Store[string, gpucore.BindGroupLayoutID]
	pipelineLayouts *cache.Store[string, gpucore.PipelineLayoutID]
}

// NewCache creates an empty cache.
func NewCache(dev gpucore.Device, shaders ShaderSource, opts ...Option) *Cache {
	o := options{label: "pipeline"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache{
		dev:             dev,
		shaders:         shaders,
		label:           o.label,
		pipelines:       cache.NewStore[Key, gpucore.RenderPipelineID](),
		layouts:         cache.NewStore[string, gpucore.BindGroupLayoutID](),
		pipelineLayouts: cache.NewStore[string, gpucore.PipelineLayoutID](),
	}
}

// GetOrBuild returns the pipeline for spec, building it on first request.
// A hit performs no device interaction. A failed build is not cached.
func (c *Cache) GetOrBuild(spec Spec) (gpucore.RenderPipelineID, error) {
	id, built, err := c.pipelines.GetOrBuild(spec.Key(), func() (gpucore.RenderPipelineID, error) {
		return c.build(&spec)
	})
	if err != nil {
		return gpucore.InvalidID, err
	}
	if built {
		logging.L().Debug("pipeline: built",
			"hash", fmt.Sprintf("%016x", spec.Hash()),
			"vs", spec.VertexShader, "fs", spec.FragmentShader,
			"target", spec.Target.Name)
	}
	return id, nil
}

// Lookup returns the pipeline for spec if it has been built.
func (c *Cache) Lookup(spec Spec) (gpucore.RenderPipelineID, bool) {
	return c.pipelines.Get(spec.Key())
}

func (c *Cache) build(spec *Spec) (gpucore.RenderPipelineID, error) {
	label := fmt.Sprintf("%s_%016x", c.label, spec.Hash())

	vs, err := c.shaders.Module(spec.VertexShader)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("%s: vertex shader: %w", label, err)
	}
	fs, err := c.shaders.Module(spec.FragmentShader)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("%s: fragment shader: %w", label, err)
	}

	layout, err := c.pipelineLayout(spec)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("%s: %w", label, err)
	}

	vsEntry, fsEntry := spec.entries()
	return c.dev.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Label:          label,
		Layout:         layout,
		VertexModule:   vs,
		VertexEntry:    vsEntry,
		FragmentModule: fs,
		FragmentEntry:  fsEntry,
		VertexBuffers:  spec.VertexLayout,
		Topology:       spec.Topology,
		ColorFormats:   spec.Target.ColorFormats,
		DepthFormat:    spec.Target.DepthFormat,
		DepthRead:      spec.DepthRead,
		DepthWrite:     spec.DepthWrite,
	})
}

// pipelineLayout returns the shared pipeline layout for the spec's group
// shapes: pass inputs first, then the object sets.
func (c *Cache) pipelineLayout(spec *Spec) (gpucore.PipelineLayoutID, error) {
	var shapes [][]gpucore.BindGroupLayoutEntry
	if len(spec.Target.Inputs) > 0 {
		shapes = append(shapes, spec.Target.Inputs)
	}
	shapes = append(shapes, spec.Sets...)

	groups := make([]gpucore.BindGroupLayoutID, len(shapes))
	key := ""
	for i, shape := range shapes {
		id, err := c.Layout(shape)
		if err != nil {
			return gpucore.InvalidID, err
		}
		groups[i] = id
		key += LayoutKey(shape)
	}

	id, _, err := c.pipelineLayouts.GetOrBuild(key, func() (gpucore.PipelineLayoutID, error) {
		return c.dev.CreatePipelineLayout(&gpucore.PipelineLayoutDesc{
			Label:            c.label + "_layout",
			BindGroupLayouts: groups,
		})
	})
	return id, err
}

// Layout returns the shared bind group layout for a set shape.
func (c *Cache) Layout(entries []gpucore.BindGroupLayoutEntry) (gpucore.BindGroupLayoutID, error) {
	id, _, err := c.layouts.GetOrBuild(LayoutKey(entries), func() (gpucore.BindGroupLayoutID, error) {
		return c.dev.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
			Label:   c.label + "_bgl",
			Entries: entries,
		})
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("bind group layout: %w", err)
	}
	return id, nil
}

// Stats contains cache statistics.
type Stats struct {
	// Hits and Misses count GetOrBuild lookups.
	Hits   uint64
	Misses uint64
	// Pipelines is the number of cached pipelines.
	Pipelines int
	// Layouts is the number of distinct bind group layouts.
	Layouts int
}

// Stats returns cache statistics. Diagnostic only.
func (c *Cache) Stats() Stats {
	ps := c.pipelines.Stats()
	return Stats{
		Hits:      ps.Hits,
		Misses:    ps.Misses,
		Pipelines: ps.Len,
		Layouts:   c.layouts.Len(),
	}
}

// Close destroys every pipeline and layout the cache created. Shader
// modules belong to the ShaderSource.
func (c *Cache) Close() {
	c.pipelines.Range(func(_ Key, id gpucore.RenderPipelineID) {
		c.dev.DestroyRenderPipeline(id)
	})
	c.pipelineLayouts.Range(func(_ string, id gpucore.PipelineLayoutID) {
		c.dev.DestroyPipelineLayout(id)
	})
	c.layouts.Range(func(_ string, id gpucore.BindGroupLayoutID) {
		c.dev.DestroyBindGroupLayout(id)
	})
	c.pipelines.Clear()
	c.pipelineLayouts.Clear()
	c.layouts.Clear()
}
