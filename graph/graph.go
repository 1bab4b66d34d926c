// Package graph sequences render passes and wires their images together.
//
// A [Graph] holds an ordered list of passes. Each pass declares the images
// it creates, identified by string tags, and the tags it samples. The
// graph checks the whole configuration when it is built: every sampled tag
// must come from an earlier pass or from the caller's fixed images, every
// tag has exactly one producer and the output tag must exist. Nothing is
// checked at frame time that could have been checked here.
//
// Each frame runs the passes strictly in declared order. A pass gets its
// images (allocated lazily, fixed or window-relative), its inputs bound at
// bind group 0 and a draw call from every Drawable registered for it.
// After the last pass the image selected by the output tag is drawn onto
// the presentation surface:
//
//	g, err := graph.New(ctx, passes, fixed, "final_color")
//	...
//	frame, err := g.BeginFrame(surface)
//	frame.Add(shadow, casters...)
//	frame.Add(final, scene...)
//	err = frame.Finish()
//
// Changing the output tag only changes what is presented. The draw calls
// recorded for each pass stay the same.
//
// A Graph is driven by one goroutine and is not safe for concurrent use.
package graph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/object"
	"github.com/gogpu/framegraph/pipeline"
)

// imageUsage lets every graph image be rendered to, sampled and read back.
const imageUsage = gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopySrc

// slot is one tag registry entry.
type slot struct {
	img      Image
	producer int // pass index, or -1 for caller images
}

type passState struct {
	pass   Pass
	target pipeline.TargetFormat
	colors []string
	depth  string
}

// Graph is a validated pass list with its image registry.
type Graph struct {
	ctx  object.BuildContext
	opts options

	passes []passState
	index  map[string]int
	images map[string]*slot
	output string

	width, height uint32

	sampler    gpucore.SamplerID
	nearest    gpucore.SamplerID
	ownSampler bool

	retiredTextures []gpucore.TextureID
	retiredGroups   []gpucore.BindGroupID

	frame     *Frame
	presenter map[presentKey]*object.Object
	tri       *mesh.Mesh

	stats  FrameStats
	closed bool
}

// FrameStats holds per-graph diagnostics.
type FrameStats struct {
	// Frames is the number of finished frames.
	Frames uint64
	// Passes and Draws count the last finished frame.
	Passes int
	Draws  int
	// Resizes counts window-relative rebuilds.
	Resizes int
	// Images is the number of live images owned by the graph.
	Images int
}

// New validates passes and builds a graph. fixed holds caller-owned images
// that passes may sample; output selects the presented tag. Configuration
// errors are returned as *ConfigError before any device work is done.
func New(ctx object.BuildContext, passes []Pass, fixed map[string]Image, output string, opts ...Option) (*Graph, error) {
	if err := validate(passes, fixed, output); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	g := &Graph{
		ctx:       ctx,
		opts:      o,
		index:     make(map[string]int, len(passes)),
		images:    make(map[string]*slot),
		output:    output,
		presenter: make(map[presentKey]*object.Object),
	}
	for tag, img := range fixed {
		img.Fixed = true
		img.Sizing = SizeFixed
		g.images[tag] = &slot{img: img, producer: -1}
	}
	for i, p := range passes {
		g.index[p.Name] = i
		for _, spec := range p.Creates {
			g.images[spec.Tag] = &slot{
				img: Image{
					Format: spec.Format,
					Width:  spec.Width,
					Height: spec.Height,
					Sizing: spec.Sizing,
				},
				producer: i,
			}
		}
	}
	for _, p := range passes {
		g.passes = append(g.passes, g.newPassState(p))
	}

	if err := g.createSamplers(); err != nil {
		return nil, err
	}
	logging.L().Debug("graph: built", "passes", len(passes), "images", len(g.images), "output", output)
	return g, nil
}

func (g *Graph) newPassState(p Pass) passState {
	ps := passState{pass: p, target: pipeline.TargetFormat{Name: p.Name}}
	for _, spec := range p.Creates {
		if gpucore.IsDepthFormat(spec.Format) {
			ps.depth = spec.Tag
			ps.target.DepthFormat = spec.Format
			continue
		}
		ps.colors = append(ps.colors, spec.Tag)
		ps.target.ColorFormats = append(ps.target.ColorFormats, spec.Format)
	}
	if len(p.Needs) > 0 {
		depth := make([]bool, len(p.Needs))
		for i, tag := range p.Needs {
			depth[i] = gpucore.IsDepthFormat(g.images[tag].img.Format)
		}
		ps.target.Inputs = inputLayout(depth)
	}
	return ps
}

// inputLayout returns the group 0 shape for sampled inputs. Depth inputs
// need a non-filtering sampler.
func inputLayout(depth []bool) []gpucore.BindGroupLayoutEntry {
	sampler := gpucore.BindingSampler
	if slices.Contains(depth, true) {
		sampler = gpucore.BindingNonFilteringSampler
	}
	entries := []gpucore.BindGroupLayoutEntry{
		{Binding: 0, Kind: sampler, Visibility: gputypes.ShaderStageFragment},
	}
	for i, d := range depth {
		kind := gpucore.BindingTexture
		if d {
			kind = gpucore.BindingDepthTexture
		}
		entries = append(entries, gpucore.BindGroupLayoutEntry{
			//nolint:gosec // G115: input counts are bounded by GPU limits
			Binding:    uint32(i + 1),
			Kind:       kind,
			Visibility: gputypes.ShaderStageFragment,
		})
	}
	return entries
}

func (g *Graph) createSamplers() error {
	dev := g.ctx.Device
	g.sampler = g.opts.sampler
	if g.sampler == gpucore.InvalidID {
		id, err := dev.CreateSampler(&gpucore.SamplerDesc{
			Label:       "graph_linear",
			AddressMode: gputypes.AddressModeClampToEdge,
			Filter:      gputypes.FilterModeLinear,
		})
		if err != nil {
			return fmt.Errorf("graph: sampler: %w", err)
		}
		g.sampler = id
		g.ownSampler = true
	}
	id, err := dev.CreateSampler(&gpucore.SamplerDesc{
		Label:       "graph_nearest",
		AddressMode: gputypes.AddressModeClampToEdge,
		Filter:      gputypes.FilterModeNearest,
	})
	if err != nil {
		if g.ownSampler {
			dev.DestroySampler(g.sampler)
		}
		return fmt.Errorf("graph: sampler: %w", err)
	}
	g.nearest = id
	return nil
}

// PassRef is a pass resolved by name at setup time.
type PassRef struct {
	g *Graph
	i int
}

// Name returns the pass name.
func (r PassRef) Name() string { return r.g.passes[r.i].pass.Name }

// Target returns the format draw objects for this pass are built against.
func (r PassRef) Target() pipeline.TargetFormat { return r.g.passes[r.i].target }

// SetBase returns the first bind group index free for object sets.
func (r PassRef) SetBase() uint32 { return r.g.passes[r.i].target.SetBase() }

// Lookup resolves a pass name.
func (g *Graph) Lookup(name string) (PassRef, error) {
	i, ok := g.index[name]
	if !ok {
		return PassRef{}, &ConfigError{Kind: ErrUnknownPass, Pass: name}
	}
	return PassRef{g: g, i: i}, nil
}

// Validate checks that every key of a registration map names a pass.
// Names are checked in sorted order so the reported error is stable.
func (g *Graph) Validate(objects map[string][]object.Drawable) error {
	for _, name := range slices.Sorted(maps.Keys(objects)) {
		if _, ok := g.index[name]; !ok {
			return &ConfigError{Kind: ErrUnknownPass, Pass: name}
		}
	}
	return nil
}

// Passes returns the pass names in execution order.
func (g *Graph) Passes() []string {
	names := make([]string, len(g.passes))
	for i := range g.passes {
		names[i] = g.passes[i].pass.Name
	}
	return names
}

// Image returns the registry entry for tag. Images are created lazily;
// Texture is InvalidID until the producing pass first runs.
func (g *Graph) Image(tag string) (Image, bool) {
	s, ok := g.images[tag]
	if !ok {
		return Image{}, false
	}
	return s.img, true
}

// OutputTag returns the presented tag.
func (g *Graph) OutputTag() string { return g.output }

// SetOutputTag selects the presented image. It affects nothing but the
// final copy to the surface.
func (g *Graph) SetOutputTag(tag string) error {
	if _, ok := g.images[tag]; !ok {
		return &ConfigError{Kind: ErrUnknownOutput, Tag: tag}
	}
	g.output = tag
	return nil
}

// Size returns the current window size images are sized against.
func (g *Graph) Size() (width, height uint32) { return g.width, g.height }

// Resize rebuilds every window-relative image at the new size. Fixed
// images are untouched. The old textures are destroyed at the next
// BeginFrame.
func (g *Graph) Resize(width, height uint32) error {
	if g.frame != nil {
		return ErrFrameInProgress
	}
	if width == 0 || height == 0 {
		return &ConfigError{Kind: ErrInvalidImage, Detail: fmt.Sprintf("resize to %dx%d", width, height)}
	}
	return g.resize(width, height)
}

func (g *Graph) resize(width, height uint32) error {
	if width == g.width && height == g.height {
		return nil
	}
	first := g.width == 0
	g.width, g.height = width, height
	if first {
		return nil
	}

	var rebuilt []string
	var refs []gpucore.ResourceRef
	for _, tag := range slices.Sorted(maps.Keys(g.images)) {
		s := g.images[tag]
		if s.img.Fixed || s.img.Sizing != SizeWindowRelative || s.img.Texture == gpucore.InvalidID {
			continue
		}
		refs = append(refs, gpucore.TextureRef(s.img.Texture))
		g.retiredTextures = append(g.retiredTextures, s.img.Texture)
		s.img.Texture = gpucore.InvalidID
		rebuilt = append(rebuilt, tag)
	}
	g.retiredGroups = append(g.retiredGroups, g.ctx.Bindings.Evict(refs...)...)
	g.stats.Resizes++

	for _, tag := range rebuilt {
		if err := g.ensure(tag); err != nil {
			return err
		}
	}
	logging.L().Debug("graph: resized", "width", width, "height", height, "rebuilt", len(rebuilt))
	return nil
}

// ensure creates the image for tag if it does not exist yet.
func (g *Graph) ensure(tag string) error {
	s := g.images[tag]
	if s.img.Texture != gpucore.InvalidID || s.img.Fixed {
		return nil
	}
	if s.img.Sizing == SizeWindowRelative {
		s.img.Width, s.img.Height = g.width, g.height
	}
	id, err := g.ctx.Device.CreateTexture(&gpucore.TextureDesc{
		Label:  tag,
		Width:  s.img.Width,
		Height: s.img.Height,
		Format: s.img.Format,
		Usage:  imageUsage,
	})
	if err != nil {
		return fmt.Errorf("graph: image %q: %w", tag, err)
	}
	s.img.Texture = id
	logging.L().Debug("graph: image created", "tag", tag, "width", s.img.Width, "height", s.img.Height, "sizing", s.img.Sizing)
	return nil
}

func (g *Graph) destroyRetired() {
	for _, id := range g.retiredGroups {
		g.ctx.Device.DestroyBindGroup(id)
	}
	for _, id := range g.retiredTextures {
		g.ctx.Device.DestroyTexture(id)
	}
	g.retiredGroups = g.retiredGroups[:0]
	g.retiredTextures = g.retiredTextures[:0]
}

// Stats returns graph diagnostics.
func (g *Graph) Stats() FrameStats {
	st := g.stats
	for _, s := range g.images {
		if !s.img.Fixed && s.img.Texture != gpucore.InvalidID {
			st.Images++
		}
	}
	return st
}

// Close abandons any frame in progress and releases every image, sampler
// and presenter the graph owns. Caller images are left alone. Close is
// idempotent.
func (g *Graph) Close() {
	if g.closed {
		return
	}
	g.closed = true
	if g.frame != nil {
		g.frame.abort()
	}
	g.destroyRetired()

	refs := []gpucore.ResourceRef{gpucore.SamplerRef(g.sampler), gpucore.SamplerRef(g.nearest)}
	for _, s := range g.images {
		if s.img.Fixed || s.img.Texture == gpucore.InvalidID {
			continue
		}
		refs = append(refs, gpucore.TextureRef(s.img.Texture))
		g.ctx.Device.DestroyTexture(s.img.Texture)
		s.img.Texture = gpucore.InvalidID
	}
	for _, id := range g.ctx.Bindings.Evict(refs...) {
		g.ctx.Device.DestroyBindGroup(id)
	}

	for _, p := range g.presenter {
		p.Release()
	}
	clear(g.presenter)
	if g.tri != nil {
		g.tri.Release()
		g.tri = nil
	}
	if g.ownSampler {
		g.ctx.Device.DestroySampler(g.sampler)
		g.ownSampler = false
	}
	g.ctx.Device.DestroySampler(g.nearest)
	g.nearest = gpucore.InvalidID
}
