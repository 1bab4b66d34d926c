// Command pointshadow renders a scene lit by a point light with
// omnidirectional shadows.
//
// The shadow pass draws every caster six times, once per cube face, into
// a 6x1 atlas of 1024x1024 patches. The final pass samples the atlas to
// shade the scene. Holding the output key shows the atlas instead; here
// the key hold is simulated with -hold-from and -hold-to.
//
// Usage:
//
//	pointshadow -frames 120 -output shadow.png
//	pointshadow -backend vulkan -graph graph.yaml -watch
package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/asset"
	"github.com/gogpu/framegraph/backend/native"
	"github.com/gogpu/framegraph/control"
	"github.com/gogpu/framegraph/graph"
)

//go:embed shaders/*.wgsl
var shaderFiles embed.FS

//go:embed graph.yaml
var defaultGraph []byte

type options struct {
	backend       string
	width, height uint
	frames        int
	output        string
	graph         string
	watch         bool
	holdFrom      int
	holdTo        int
}

func main() {
	var o options
	flag.StringVar(&o.backend, "backend", "noop", "GPU backend: noop or vulkan")
	flag.UintVar(&o.width, "width", 1024, "surface width")
	flag.UintVar(&o.height, "height", 768, "surface height")
	flag.IntVar(&o.frames, "frames", 120, "number of frames to render")
	flag.StringVar(&o.output, "output", "", "write the last frame to this PNG file")
	flag.StringVar(&o.graph, "graph", "", "graph config file (YAML or TOML); the built-in graph if empty")
	flag.BoolVar(&o.watch, "watch", false, "reload the graph config when the file changes")
	flag.IntVar(&o.holdFrom, "hold-from", -1, "frame at which the output key is pressed")
	flag.IntVar(&o.holdTo, "hold-to", -1, "frame at which the output key is released")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	framegraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(o); err != nil {
		log.Fatalf("pointshadow: %v", err)
	}
}

func run(o options) error {
	dev, err := openDevice(o.backend)
	if err != nil {
		return fmt.Errorf("open %s device: %w", o.backend, err)
	}
	defer dev.Close()

	cfg, err := loadGraph(o.graph)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	//nolint:gosec // G115: flag values are small
	surface, err := native.NewOffscreenSurface(dev, uint32(o.width), uint32(o.height), gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		return err
	}
	defer surface.Close()

	sess := framegraph.NewSession(dev, framegraph.WithShaders(shaderFiles), framegraph.WithPipelineLabel("pointshadow"))
	defer sess.Close()

	keys := control.NewOutputSwitch(gpucontext.KeySpace, cfg.Output, "cubemap_view")
	d, err := newDemo(sess, surface, cfg, keys)
	if err != nil {
		return err
	}
	defer d.close()
	d.holdKey(o.holdFrom, o.holdTo)

	var src configSource
	if o.watch && o.graph != "" {
		w, err := framegraph.WatchConfig(o.graph)
		if err != nil {
			return fmt.Errorf("watch %s: %w", o.graph, err)
		}
		defer w.Close()
		src = w
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := d.run(ctx, o.frames, src); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	d.record.Log()
	writeStats(os.Stdout, sess.Stats(), d.g.Stats())

	if o.output == "" {
		return nil
	}
	img, err := surface.Snapshot()
	if err != nil {
		return err
	}
	if err := asset.SavePNG(o.output, img); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	log.Printf("Frame saved to %s (%dx%d)\n", o.output, o.width, o.height)
	return nil
}

func openDevice(name string) (*native.Device, error) {
	switch name {
	case "vulkan":
		return native.OpenVulkan()
	default:
		return native.OpenNoop()
	}
}

// loadGraph reads the graph config at path, or the built-in one.
func loadGraph(path string) (*graph.Config, error) {
	if path == "" {
		return graph.ParseConfig(defaultGraph)
	}
	return graph.LoadConfig(path)
}
