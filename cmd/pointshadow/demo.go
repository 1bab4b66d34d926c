package main

import (
	"context"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/control"
	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/graph"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/timing"
)

// frameStep is the simulated time between frames, in seconds.
const frameStep = 1.0 / 60

// configSource yields replacement graph configs, such as a
// framegraph.ConfigWatcher.
type configSource interface {
	Poll() (*graph.Config, bool, error)
}

// keyEvent is a simulated key transition at a frame number.
type keyEvent struct {
	frame int
	down  bool
}

// demo drives the point shadow scene through a session.
type demo struct {
	sess    *framegraph.Session
	surface gpucore.Surface
	g       *graph.Graph
	scene   *scene
	camera  *orbitCamera
	keys    *control.OutputSwitch
	events  []keyEvent

	frames int
	record *timing.Timer
	fps    *timing.FrameRate
}

func newDemo(sess *framegraph.Session, surface gpucore.Surface, cfg *graph.Config, keys *control.OutputSwitch) (*demo, error) {
	g, err := sess.NewGraphFromConfig(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	sc, err := newScene(sess.BuildContext(), g)
	if err != nil {
		sess.CloseGraph(g)
		return nil, fmt.Errorf("build scene: %w", err)
	}
	return &demo{
		sess:    sess,
		surface: surface,
		g:       g,
		scene:   sc,
		camera:  defaultCamera(),
		keys:    keys,
		record:  timing.NewTimer("record"),
		fps:     timing.NewFrameRate(),
	}, nil
}

// holdKey schedules a press at frame from and a release at frame to.
func (d *demo) holdKey(from, to int) {
	if from < 0 || to <= from {
		return
	}
	d.events = append(d.events, keyEvent{frame: from, down: true}, keyEvent{frame: to, down: false})
}

// run renders until limit frames are presented or ctx is done. A config
// arriving from src replaces the graph between frames; a bad config keeps
// the running one.
func (d *demo) run(ctx context.Context, limit int, src configSource) error {
	for d.frames < limit {
		var pending *graph.Config
		_, err := d.sess.Run(ctx, d.g, d.surface, func(f *graph.Frame) error {
			if d.frames >= limit {
				return framegraph.ErrStop
			}
			if src != nil {
				cfg, ok, err := src.Poll()
				if err != nil {
					logging.L().Warn("pointshadow: config rejected", "err", err)
				} else if ok {
					pending = cfg
					return framegraph.ErrStop
				}
			}
			return d.frame(f)
		})
		if err != nil {
			return err
		}
		if pending == nil {
			return nil
		}
		if err := d.reload(pending); err != nil {
			return err
		}
	}
	return nil
}

// frame updates the camera and output, then adds every pass's objects.
func (d *demo) frame(f *graph.Frame) error {
	d.record.Start()
	defer d.record.Stop()

	d.applyKeys()
	if _, err := d.keys.Apply(d.g); err != nil {
		return err
	}

	d.camera.update(frameStep)
	w, h := d.g.Size()
	if w == 0 || h == 0 {
		w, h = d.surface.Size()
	}
	if err := d.scene.setCamera(d.camera.viewProj(float32(w) / float32(h))); err != nil {
		return err
	}

	for name, ds := range d.scene.objects() {
		ref, err := d.g.Lookup(name)
		if err != nil {
			return err
		}
		if err := f.Add(ref, ds...); err != nil {
			return err
		}
	}

	d.frames++
	if fps, ok := d.fps.Tick(); ok {
		logging.L().Info("pointshadow: frame rate", "fps", fps, "output", d.g.OutputTag())
	}
	return nil
}

func (d *demo) applyKeys() {
	var mods gpucontext.Modifiers
	for _, ev := range d.events {
		if ev.frame != d.frames {
			continue
		}
		if ev.down {
			d.keys.KeyPress(d.keys.Key, mods)
		} else {
			d.keys.KeyRelease(d.keys.Key, mods)
		}
	}
}

// reload swaps in a graph built from cfg and rebuilds the scene against
// its passes.
func (d *demo) reload(cfg *graph.Config) error {
	g, err := d.sess.ReplaceGraph(d.g, cfg, nil)
	if err != nil {
		logging.L().Warn("pointshadow: keeping current graph", "err", err)
		return nil
	}
	d.scene.release()
	d.g = g
	sc, err := newScene(d.sess.BuildContext(), g)
	if err != nil {
		d.scene = nil
		return fmt.Errorf("rebuild scene: %w", err)
	}
	d.scene = sc
	return nil
}

// close releases the scene and the graph. The session keeps its caches.
func (d *demo) close() {
	if d.scene != nil {
		d.scene.release()
		d.scene = nil
	}
	if d.g != nil {
		d.sess.CloseGraph(d.g)
		d.g = nil
	}
}
