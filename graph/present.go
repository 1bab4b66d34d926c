package graph

import (
	"embed"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/object"
	"github.com/gogpu/framegraph/pipeline"
)

// Shaders holds the built-in present shaders at PresentShader and
// PresentDepthShader. Layer it under the application's shader files.
//
//go:embed shaders/*.wgsl
var Shaders embed.FS

type presentKey struct {
	format gputypes.TextureFormat
	depth  bool
}

// presenterFor returns the fullscreen object that copies an image of the
// given kind onto a surface of the given format.
func (g *Graph) presenterFor(format gputypes.TextureFormat, depth bool) (*object.Object, error) {
	key := presentKey{format: format, depth: depth}
	if p, ok := g.presenter[key]; ok {
		return p, nil
	}
	if g.tri == nil {
		g.tri = mesh.FullscreenTriangle()
	}
	fs := g.opts.presentFS
	if depth {
		fs = g.opts.presentDFS
	}
	p, err := object.Prototype{
		VertexShader:   g.opts.presentVS,
		FragmentShader: fs,
		Mesh:           g.tri,
		Topology:       gputypes.PrimitiveTopologyTriangleList,
	}.Build(g.ctx, pipeline.TargetFormat{
		Name:         presentPassName,
		ColorFormats: []gputypes.TextureFormat{format},
		Inputs:       inputLayout([]bool{depth}),
	})
	if err != nil {
		return nil, fmt.Errorf("graph: present pipeline: %w", err)
	}
	g.presenter[key] = p
	return p, nil
}

// inputGroup returns the bind group sampling tags with the layout shape.
func (g *Graph) inputGroup(shape []gpucore.BindGroupLayoutEntry, tags []string) (gpucore.BindGroupID, error) {
	layout, err := g.ctx.Pipelines.Layout(shape)
	if err != nil {
		return gpucore.InvalidID, err
	}
	sampler := g.sampler
	if shape[0].Kind == gpucore.BindingNonFilteringSampler {
		sampler = g.nearest
	}
	entries := make([]gpucore.BindGroupEntry, 0, len(tags)+1)
	entries = append(entries, gpucore.BindGroupEntry{Binding: 0, Resource: gpucore.SamplerRef(sampler)})
	for i, tag := range tags {
		entries = append(entries, gpucore.BindGroupEntry{
			//nolint:gosec // G115: input counts are bounded by GPU limits
			Binding:  uint32(i + 1),
			Resource: gpucore.TextureRef(g.images[tag].img.Texture),
		})
	}
	return g.ctx.Bindings.GetOrBuild(layout, entries)
}

// present draws the output image onto the surface texture.
func (f *Frame) present() error {
	g := f.g
	if err := g.ensure(g.output); err != nil {
		return err
	}
	img := g.images[g.output].img

	target, err := f.surface.Acquire()
	if err != nil {
		return fmt.Errorf("graph: acquire surface: %w", err)
	}
	p, err := g.presenterFor(f.surface.Format(), gpucore.IsDepthFormat(img.Format))
	if err != nil {
		return err
	}
	inputs, err := g.inputGroup(p.Spec().Target.Inputs, []string{g.output})
	if err != nil {
		return fmt.Errorf("graph: present inputs: %w", err)
	}

	rp, err := f.enc.BeginRenderPass(&gpucore.RenderPassDesc{
		Label: presentPassName,
		Color: []gpucore.ColorAttachment{{Texture: target, Clear: g.opts.clearColor}},
	})
	if err != nil {
		return fmt.Errorf("graph: present pass: %w", err)
	}
	defer rp.End()

	w, h := f.surface.Size()
	rec := &object.Recorder{
		Pass:      rp,
		Target:    p.Spec().Target,
		Width:     w,
		Height:    h,
		Inputs:    inputs,
		Pipelines: g.ctx.Pipelines,
		Bindings:  g.ctx.Bindings,
	}
	return p.Draw(rec)
}
