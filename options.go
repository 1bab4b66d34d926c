package framegraph

import (
	"io/fs"

	"github.com/gogpu/framegraph/pipeline"
)

// Option configures a Session during creation.
//
// Example:
//
//	s := framegraph.NewSession(dev,
//	    framegraph.WithShaders(os.DirFS("shaders")),
//	    framegraph.WithPipelineLabel("pointshadow"))
type Option func(*sessionOptions)

// sessionOptions holds optional configuration for Session creation.
type sessionOptions struct {
	shaders       fs.FS
	source        pipeline.ShaderSource
	pipelineLabel string
}

func defaultOptions() sessionOptions {
	return sessionOptions{pipelineLabel: "framegraph"}
}

// WithShaders sets the file system application shaders are read from.
// The built-in present shaders stay reachable underneath it.
func WithShaders(fsys fs.FS) Option {
	return func(o *sessionOptions) {
		o.shaders = fsys
	}
}

// WithShaderSource replaces the shader library with another path to
// module resolver, such as a precompiled module table. WithShaders is
// ignored when it is set.
func WithShaderSource(src pipeline.ShaderSource) Option {
	return func(o *sessionOptions) {
		o.source = src
	}
}

// WithPipelineLabel sets the label prefix of cached pipelines and
// layouts.
func WithPipelineLabel(label string) Option {
	return func(o *sessionOptions) {
		o.pipelineLabel = label
	}
}
