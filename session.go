package framegraph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"

	"github.com/gogpu/framegraph/binding"
	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/graph"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/object"
	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/shader"
)

// ErrStop ends Session.Run without an error when returned by a FrameFunc.
var ErrStop = errors.New("framegraph: stop")

// ErrClosed is returned by a closed Session.
var ErrClosed = errors.New("framegraph: session closed")

// FrameFunc registers the drawables of one frame. It runs after the frame
// has begun; passes are recorded when it returns.
type FrameFunc func(f *graph.Frame) error

// Session owns the shader library and both caches for one device, and the
// graphs built on them. Pipelines and bind groups live as long as the
// session and are shared by every graph and object built from it.
type Session struct {
	dev       gpucore.Device
	library   *shader.Library
	pipelines *pipeline.Cache
	bindings  *binding.Cache

	mu     sync.Mutex
	graphs []*graph.Graph
	closed bool
}

// NewSession creates a session on dev.
func NewSession(dev gpucore.Device, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{dev: dev}
	src := o.source
	if src == nil {
		var fsys fs.FS = graph.Shaders
		if o.shaders != nil {
			fsys = shader.Union(o.shaders, graph.Shaders)
		}
		s.library = shader.NewLibrary(dev, fsys)
		src = s.library
	}
	s.pipelines = pipeline.NewCache(dev, src, pipeline.WithLabel(o.pipelineLabel))
	s.bindings = binding.NewCache(dev)
	return s
}

// Device returns the session device.
func (s *Session) Device() gpucore.Device { return s.dev }

// BuildContext returns what objects are built with.
func (s *Session) BuildContext() object.BuildContext {
	return object.BuildContext{Device: s.dev, Pipelines: s.pipelines, Bindings: s.bindings}
}

// NewGraph builds a graph on the session caches. The session closes it on
// Close unless it was closed with CloseGraph before.
func (s *Session) NewGraph(passes []graph.Pass, fixed map[string]graph.Image, output string, opts ...graph.Option) (*graph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	g, err := graph.New(s.BuildContext(), passes, fixed, output, opts...)
	if err != nil {
		return nil, err
	}
	s.graphs = append(s.graphs, g)
	return g, nil
}

// NewGraphFromConfig builds a graph from a declarative config.
func (s *Session) NewGraphFromConfig(cfg *graph.Config, fixed map[string]graph.Image, opts ...graph.Option) (*graph.Graph, error) {
	passes, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return s.NewGraph(passes, fixed, cfg.Output, opts...)
}

// ReplaceGraph builds a graph from cfg and, if that succeeds, closes old.
// On failure old is returned unchanged with the error, so a bad edit of a
// watched config keeps the last good graph running. The output tag of old
// is carried over when the new graph has it.
func (s *Session) ReplaceGraph(old *graph.Graph, cfg *graph.Config, fixed map[string]graph.Image, opts ...graph.Option) (*graph.Graph, error) {
	g, err := s.NewGraphFromConfig(cfg, fixed, opts...)
	if err != nil {
		return old, err
	}
	if old != nil {
		if _, ok := g.Image(old.OutputTag()); ok {
			_ = g.SetOutputTag(old.OutputTag())
		}
		s.CloseGraph(old)
	}
	logging.L().Info("framegraph: graph replaced", "passes", len(g.Passes()), "output", g.OutputTag())
	return g, nil
}

// CloseGraph closes g and forgets it.
func (s *Session) CloseGraph(g *graph.Graph) {
	s.mu.Lock()
	s.graphs = slices.DeleteFunc(s.graphs, func(x *graph.Graph) bool { return x == g })
	s.mu.Unlock()
	g.Close()
}

// RenderFrame records and presents one frame of g.
func (s *Session) RenderFrame(g *graph.Graph, surface gpucore.Surface, fn FrameFunc) error {
	f, err := g.BeginFrame(surface)
	if err != nil {
		return err
	}
	if fn != nil {
		if err := fn(f); err != nil {
			_ = f.Discard()
			return err
		}
	}
	return f.Finish()
}

// Run renders frames of g until ctx is done or fn returns ErrStop. It
// returns the number of presented frames.
func (s *Session) Run(ctx context.Context, g *graph.Graph, surface gpucore.Surface, fn FrameFunc) (int, error) {
	frames := 0
	for {
		select {
		case <-ctx.Done():
			return frames, nil
		default:
		}
		err := s.RenderFrame(g, surface, fn)
		if errors.Is(err, ErrStop) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("frame %d: %w", frames, err)
		}
		frames++
	}
}

// Stats reports cache usage across the session.
type Stats struct {
	Shaders   shader.Stats
	Pipelines pipeline.Stats
	Bindings  binding.Stats
	Graphs    int
}

// Stats returns session diagnostics.
func (s *Session) Stats() Stats {
	st := Stats{
		Pipelines: s.pipelines.Stats(),
		Bindings:  s.bindings.Stats(),
	}
	if s.library != nil {
		st.Shaders = s.library.Stats()
	}
	s.mu.Lock()
	st.Graphs = len(s.graphs)
	s.mu.Unlock()
	return st
}

// Close closes every graph, then destroys cached bind groups, pipelines
// and shader modules. The device is left open.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	graphs := s.graphs
	s.graphs = nil
	s.mu.Unlock()

	for _, g := range graphs {
		g.Close()
	}
	s.bindings.Close()
	s.pipelines.Close()
	if s.library != nil {
		s.library.Close()
	}
	logging.L().Debug("framegraph: session closed", "graphs", len(graphs))
}
