package graph

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gpucore"
)

// Built-in present shaders, served from Shaders.
const (
	PresentShader      = "shaders/framegraph_present.wgsl"
	PresentDepthShader = "shaders/framegraph_present_depth.wgsl"
)

// Option configures a Graph.
type Option func(*options)

type options struct {
	sampler    gpucore.SamplerID
	clearColor gputypes.Color
	presentVS  string
	presentFS  string
	presentDFS string
}

func defaultOptions() options {
	return options{
		clearColor: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		presentVS:  PresentShader,
		presentFS:  PresentShader,
		presentDFS: PresentDepthShader,
	}
}

// WithSampler sets the filtering sampler used for color inputs. The graph
// does not take ownership.
func WithSampler(id gpucore.SamplerID) Option {
	return func(o *options) {
		o.sampler = id
	}
}

// WithClearColor sets the clear color of passes that do not declare one.
func WithClearColor(c gputypes.Color) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithPresentShaders replaces the shaders that copy the output image to
// the surface. colorFS samples texture_2d<f32> and depthFS samples
// texture_depth_2d, both at group 0 binding 1 with the sampler at
// binding 0.
func WithPresentShaders(vs, colorFS, depthFS string) Option {
	return func(o *options) {
		o.presentVS = vs
		o.presentFS = colorFS
		o.presentDFS = depthFS
	}
}
