package graph

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/binding"
	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/fakegpu"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/object"
	"github.com/gogpu/framegraph/pipeline"
)

// pathShaders is a ShaderSource that records requested paths.
type pathShaders struct {
	dev       *fakegpu.Device
	ids       map[string]gpucore.ShaderModuleID
	requested []string
}

func (s *pathShaders) Module(path string) (gpucore.ShaderModuleID, error) {
	s.requested = append(s.requested, path)
	if id, ok := s.ids[path]; ok {
		return id, nil
	}
	id, err := s.dev.CreateShaderModule(&gpucore.ShaderModuleDesc{Label: path})
	if err == nil {
		s.ids[path] = id
	}
	return id, err
}

type env struct {
	dev     *fakegpu.Device
	shaders *pathShaders
	ctx     object.BuildContext
	surface *fakegpu.Surface
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dev := fakegpu.New()
	shaders := &pathShaders{dev: dev, ids: map[string]gpucore.ShaderModuleID{}}
	e := &env{
		dev:     dev,
		shaders: shaders,
		ctx: object.BuildContext{
			Device:    dev,
			Pipelines: pipeline.NewCache(dev, shaders),
			Bindings:  binding.NewCache(dev),
		},
		surface: fakegpu.NewSurface(dev, 800, 600),
	}
	t.Cleanup(func() {
		e.ctx.Bindings.Close()
		e.ctx.Pipelines.Close()
	})
	return e
}

func (e *env) newGraph(t *testing.T, passes []Pass, fixed map[string]Image, output string) *Graph {
	t.Helper()
	g, err := New(e.ctx, passes, fixed, output)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(g.Close)
	return g
}

func color(tag string) ImageSpec {
	return ImageSpec{Tag: tag, Format: gputypes.TextureFormatRGBA8Unorm, Sizing: SizeWindowRelative}
}

func depthFixed(tag string, w, h uint32) ImageSpec {
	return ImageSpec{Tag: tag, Format: gputypes.TextureFormatDepth32Float, Sizing: SizeFixed, Width: w, Height: h}
}

func scenarioA() []Pass {
	return []Pass{
		{Name: "A", Creates: []ImageSpec{color("x")}},
		{Name: "B", Creates: []ImageSpec{color("y")}, Needs: []string{"x"}},
	}
}

func mustLookup(t *testing.T, g *Graph, name string) PassRef {
	t.Helper()
	ref, err := g.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", name, err)
	}
	return ref
}

func labels(passes []fakegpu.RecordedPass) []string {
	out := make([]string, len(passes))
	for i, p := range passes {
		out[i] = p.Desc.Label
	}
	return out
}

func TestScenarioARunsInOrderAndWiresInputs(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, scenarioA(), nil, "y")

	var order []string
	var inputs gpucore.BindGroupID
	f, err := g.BeginFrame(e.surface)
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	_ = f.Add(mustLookup(t, g, "B"), object.DrawFunc(func(rec *object.Recorder) error {
		order = append(order, "B")
		inputs = rec.Inputs
		return nil
	}))
	_ = f.Add(mustLookup(t, g, "A"), object.DrawFunc(func(rec *object.Recorder) error {
		order = append(order, "A")
		if rec.Inputs != gpucore.InvalidID {
			t.Error("pass A has no inputs but got a bind group")
		}
		return nil
	}))
	if err := f.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if !slices.Equal(order, []string{"A", "B"}) {
		t.Errorf("draw order = %v, want [A B]", order)
	}
	if got := labels(e.dev.LastSubmission()); !slices.Equal(got, []string{"A", "B", presentPassName}) {
		t.Errorf("recorded passes = %v", got)
	}
	if len(e.dev.Submissions) != 1 || e.surface.Presents != 1 {
		t.Errorf("submissions = %d, presents = %d", len(e.dev.Submissions), e.surface.Presents)
	}

	x, _ := g.Image("x")
	group, ok := e.dev.Groups[inputs]
	if !ok {
		t.Fatalf("pass B input group %d not created", inputs)
	}
	if len(group.Entries) != 2 || group.Entries[1].Resource != gpucore.TextureRef(x.Texture) {
		t.Errorf("B inputs = %+v, want x texture %d at binding 1", group.Entries, x.Texture)
	}
	if group.Entries[0].Resource.Kind != gpucore.ResourceSampler {
		t.Errorf("binding 0 = %+v, want sampler", group.Entries[0])
	}
}

func TestScenarioBFailsNamingTag(t *testing.T) {
	e := newEnv(t)
	_, err := New(e.ctx, []Pass{
		{Name: "A", Creates: []ImageSpec{color("x")}, Needs: []string{"y"}},
		{Name: "B", Creates: []ImageSpec{color("y")}},
	}, nil, "x")

	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("New error = %v, want *ConfigError", err)
	}
	if !errors.Is(err, ErrOrderViolation) || cerr.Tag != "y" || cerr.Pass != "A" {
		t.Errorf("error = %v, want order violation of y in A", err)
	}
	if n := e.dev.Count("sampler"); n != 0 {
		t.Errorf("failed construction touched the device: %d samplers", n)
	}
}

func TestConfigErrors(t *testing.T) {
	tex := Image{Texture: 99, Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4}
	tests := []struct {
		name   string
		passes []Pass
		fixed  map[string]Image
		output string
		kind   error
		pass   string
		tag    string
	}{
		{
			name:   "unresolved",
			passes: []Pass{{Name: "A", Creates: []ImageSpec{color("x")}, Needs: []string{"ghost"}}},
			output: "x", kind: ErrUnresolvedTag, pass: "A", tag: "ghost",
		},
		{
			name: "two passes produce",
			passes: []Pass{
				{Name: "A", Creates: []ImageSpec{color("x")}},
				{Name: "B", Creates: []ImageSpec{color("x")}},
			},
			output: "x", kind: ErrDuplicateProducer, pass: "B", tag: "x",
		},
		{
			name:   "pass and fixed produce",
			passes: []Pass{{Name: "A", Creates: []ImageSpec{color("tex")}}},
			fixed:  map[string]Image{"tex": tex},
			output: "tex", kind: ErrDuplicateProducer, pass: "A", tag: "tex",
		},
		{
			name:   "same pass twice",
			passes: []Pass{{Name: "A", Creates: []ImageSpec{color("x"), color("x")}}},
			output: "x", kind: ErrDuplicateProducer, pass: "A", tag: "x",
		},
		{
			name:   "unknown output",
			passes: scenarioA(),
			output: "z", kind: ErrUnknownOutput, tag: "z",
		},
		{
			name:   "self sampling",
			passes: []Pass{{Name: "A", Creates: []ImageSpec{color("x")}, Needs: []string{"x"}}},
			output: "x", kind: ErrOrderViolation, pass: "A", tag: "x",
		},
		{
			name:   "empty name",
			passes: []Pass{{Creates: []ImageSpec{color("x")}}},
			output: "x", kind: ErrEmptyPassName,
		},
		{
			name: "duplicate name",
			passes: []Pass{
				{Name: "A", Creates: []ImageSpec{color("x")}},
				{Name: "A", Creates: []ImageSpec{color("y")}},
			},
			output: "x", kind: ErrDuplicatePass, pass: "A",
		},
		{
			name:   "reserved name",
			passes: []Pass{{Name: presentPassName, Creates: []ImageSpec{color("x")}}},
			output: "x", kind: ErrDuplicatePass, pass: presentPassName,
		},
		{
			name:   "no sizing",
			passes: []Pass{{Name: "A", Creates: []ImageSpec{{Tag: "x", Format: gputypes.TextureFormatRGBA8Unorm}}}},
			output: "x", kind: ErrInvalidImage, pass: "A", tag: "x",
		},
		{
			name:   "fixed without size",
			passes: []Pass{{Name: "A", Creates: []ImageSpec{depthFixed("d", 0, 0)}}},
			output: "d", kind: ErrInvalidImage, pass: "A", tag: "d",
		},
		{
			name:   "two depth attachments",
			passes: []Pass{{Name: "A", Creates: []ImageSpec{depthFixed("d1", 8, 8), depthFixed("d2", 8, 8)}}},
			output: "d1", kind: ErrInvalidImage, pass: "A", tag: "d2",
		},
		{
			name:   "mixed sizing",
			passes: []Pass{{Name: "A", Creates: []ImageSpec{color("c"), depthFixed("d", 8, 8)}}},
			output: "c", kind: ErrInvalidImage, pass: "A", tag: "d",
		},
		{
			name:   "no attachments",
			passes: []Pass{{Name: "A"}},
			output: "x", kind: ErrInvalidImage, pass: "A",
		},
		{
			name:   "fixed image without texture",
			passes: []Pass{{Name: "A", Creates: []ImageSpec{color("x")}}},
			fixed:  map[string]Image{"tex": {Format: gputypes.TextureFormatRGBA8Unorm, Width: 1, Height: 1}},
			output: "x", kind: ErrInvalidImage, tag: "tex",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := New(e.ctx, tt.passes, tt.fixed, tt.output)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error = %v, want %v", err, tt.kind)
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("error %T is not *ConfigError", err)
			}
			if cerr.Pass != tt.pass || cerr.Tag != tt.tag {
				t.Errorf("error names pass %q tag %q, want %q %q", cerr.Pass, cerr.Tag, tt.pass, tt.tag)
			}
		})
	}
}

func TestFixedImageCanBeSampledAndPresented(t *testing.T) {
	e := newEnv(t)
	tex, _ := e.dev.CreateTexture(&gpucore.TextureDesc{Label: "albedo", Width: 16, Height: 16, Format: gputypes.TextureFormatRGBA8Unorm})
	fixed := map[string]Image{"albedo": {Texture: tex, Format: gputypes.TextureFormatRGBA8Unorm, Width: 16, Height: 16}}
	g := e.newGraph(t, []Pass{{Name: "A", Creates: []ImageSpec{color("x")}, Needs: []string{"albedo"}}}, fixed, "albedo")

	if err := g.Render(e.surface, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, _ := g.Image("albedo")
	if !img.Fixed || img.Texture != tex {
		t.Errorf("albedo = %+v", img)
	}
	g.Close()
	if _, live := e.dev.Textures[tex]; !live {
		t.Error("Close destroyed a caller image")
	}
}

func TestUnknownPassName(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, scenarioA(), nil, "y")

	if _, err := g.Lookup("C"); !errors.Is(err, ErrUnknownPass) {
		t.Errorf("Lookup error = %v, want ErrUnknownPass", err)
	}
	err := g.Render(e.surface, map[string][]object.Drawable{"A": nil, "C": nil})
	var cerr *ConfigError
	if !errors.As(err, &cerr) || !errors.Is(err, ErrUnknownPass) || cerr.Pass != "C" {
		t.Fatalf("Render error = %v, want unknown pass C", err)
	}
	if n := e.dev.Count("encoder"); n != 0 {
		t.Errorf("recording started before validation: %d encoders", n)
	}
}

func TestResizeRebuildsWindowRelativeOnly(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, []Pass{
		{Name: "shadow", Creates: []ImageSpec{depthFixed("shadow_map", 6144, 1024)}},
		{Name: "final", Creates: []ImageSpec{
			color("final_color"),
			{Tag: "final_depth", Format: gputypes.TextureFormatDepth32Float, Sizing: SizeWindowRelative},
		}, Needs: []string{"shadow_map"}},
	}, nil, "final_color")

	if err := g.Render(e.surface, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	shadow, _ := g.Image("shadow_map")
	final, _ := g.Image("final_color")
	if final.Width != 800 || final.Height != 600 {
		t.Fatalf("final_color = %dx%d, want 800x600", final.Width, final.Height)
	}

	e.surface.Width, e.surface.Height = 1024, 768
	if err := g.Render(e.surface, nil); err != nil {
		t.Fatalf("Render after resize: %v", err)
	}

	shadow2, _ := g.Image("shadow_map")
	final2, _ := g.Image("final_color")
	depth2, _ := g.Image("final_depth")
	if shadow2 != shadow {
		t.Errorf("fixed image changed across resize: %+v -> %+v", shadow, shadow2)
	}
	if final2.Texture == final.Texture || final2.Width != 1024 || final2.Height != 768 {
		t.Errorf("final_color after resize = %+v", final2)
	}
	if depth2.Width != 1024 || depth2.Height != 768 {
		t.Errorf("final_depth after resize = %dx%d", depth2.Width, depth2.Height)
	}
	if st := g.Stats(); st.Resizes != 1 || st.Frames != 2 || st.Images != 3 {
		t.Errorf("Stats = %+v", st)
	}

	// The old texture was retired during the frame that resized and is
	// destroyed when the next frame begins.
	if _, live := e.dev.Textures[final.Texture]; !live {
		t.Error("retired texture destroyed before the next frame")
	}
	f, err := g.BeginFrame(e.surface)
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if _, live := e.dev.Textures[final.Texture]; live {
		t.Error("retired texture not destroyed at the next frame")
	}
	if err := f.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
}

func TestExplicitResize(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, scenarioA(), nil, "y")
	if err := g.Render(e.surface, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := g.Resize(320, 200); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	x, _ := g.Image("x")
	if x.Width != 320 || x.Height != 200 || x.Texture == gpucore.InvalidID {
		t.Errorf("x after Resize = %+v, want a live 320x200 image", x)
	}
	if err := g.Resize(0, 10); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Resize(0, 10) = %v, want ErrInvalidImage", err)
	}

	f, _ := g.BeginFrame(e.surface)
	if err := g.Resize(640, 480); !errors.Is(err, ErrFrameInProgress) {
		t.Errorf("Resize during frame = %v, want ErrFrameInProgress", err)
	}
	_ = f.Finish()
}

// drawCommands returns the commands of every recorded pass but the
// present pass, by pass label.
func drawCommands(passes []fakegpu.RecordedPass) map[string][]string {
	out := make(map[string][]string)
	for _, p := range passes {
		if p.Desc.Label != presentPassName {
			out[p.Desc.Label] = p.Cmds
		}
	}
	return out
}

func TestOutputSwitchOnlyChangesPresent(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, scenarioA(), nil, "y")
	a, b := mustLookup(t, g, "A"), mustLookup(t, g, "B")

	quad := func(ref PassRef, fs string) object.Drawable {
		o, err := object.Prototype{
			VertexShader:   "fullscreen.vert.wgsl",
			FragmentShader: fs,
			Mesh:           mesh.FullscreenQuad(),
			Topology:       gputypes.PrimitiveTopologyTriangleList,
			Sets:           []object.SetData{{Label: "params", Entries: []object.Entry{object.Uniform(make([]byte, 16))}}},
		}.Build(e.ctx, ref.Target())
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return o
	}
	objects := map[string][]object.Drawable{
		"A": {quad(a, "fill.frag.wgsl")},
		"B": {quad(b, "blur.frag.wgsl")},
	}

	if err := g.Render(e.surface, objects); err != nil {
		t.Fatalf("Render: %v", err)
	}
	first := e.dev.LastSubmission()

	if err := g.SetOutputTag("x"); err != nil {
		t.Fatalf("SetOutputTag: %v", err)
	}
	if err := g.Render(e.surface, objects); err != nil {
		t.Fatalf("Render: %v", err)
	}
	second := e.dev.LastSubmission()

	before, after := drawCommands(first), drawCommands(second)
	for _, name := range []string{"A", "B"} {
		if !slices.Equal(before[name], after[name]) {
			t.Errorf("pass %s commands changed:\n%v\n%v", name, before[name], after[name])
		}
	}
	if slices.Equal(first[2].Cmds, second[2].Cmds) {
		t.Error("present pass did not change with the output tag")
	}

	if err := g.SetOutputTag("nope"); !errors.Is(err, ErrUnknownOutput) {
		t.Errorf("SetOutputTag(nope) = %v, want ErrUnknownOutput", err)
	}
	if g.OutputTag() != "x" {
		t.Errorf("OutputTag = %q after rejected switch", g.OutputTag())
	}
}

func TestDepthOutputUsesDepthPresenter(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, []Pass{
		{Name: "shadow", Creates: []ImageSpec{depthFixed("shadow_map", 64, 64)}},
	}, nil, "shadow_map")
	if err := g.Render(e.surface, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !slices.Contains(e.shaders.requested, PresentDepthShader) {
		t.Errorf("requested shaders %v, want %s", e.shaders.requested, PresentDepthShader)
	}
}

func TestFrameMisuse(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, scenarioA(), nil, "y")

	f, err := g.BeginFrame(e.surface)
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if _, err := g.BeginFrame(e.surface); !errors.Is(err, ErrFrameInProgress) {
		t.Errorf("second BeginFrame = %v, want ErrFrameInProgress", err)
	}
	if next, ok := f.Next(); !ok || next.Name() != "A" {
		t.Errorf("Next = %v, %v", next, ok)
	}
	if err := f.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := f.Add(mustLookup(t, g, "A")); !errors.Is(err, ErrPassRecorded) {
		t.Errorf("Add to recorded pass = %v, want ErrPassRecorded", err)
	}
	if err := f.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := f.Advance(); !errors.Is(err, ErrNoMorePasses) {
		t.Errorf("Advance past end = %v, want ErrNoMorePasses", err)
	}
	if err := f.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := f.Finish(); !errors.Is(err, ErrFrameFinished) {
		t.Errorf("second Finish = %v, want ErrFrameFinished", err)
	}

	other := e.newGraph(t, scenarioA(), nil, "y")
	f2, _ := g.BeginFrame(e.surface)
	if err := f2.Add(mustLookup(t, other, "A")); !errors.Is(err, ErrUnknownPass) {
		t.Errorf("Add foreign pass = %v, want ErrUnknownPass", err)
	}
	_ = f2.Finish()
}

func TestDrawErrorAbortsFrame(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, scenarioA(), nil, "y")
	boom := errors.New("boom")

	err := g.Render(e.surface, map[string][]object.Drawable{
		"B": {object.DrawFunc(func(*object.Recorder) error { return boom })},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Render = %v, want boom", err)
	}
	if len(e.dev.Submissions) != 0 || e.surface.Presents != 0 {
		t.Errorf("failed frame was submitted or presented")
	}

	// The graph accepts a new frame afterwards.
	if err := g.Render(e.surface, nil); err != nil {
		t.Fatalf("Render after failure: %v", err)
	}
}

func TestBuildFailurePropagates(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, scenarioA(), nil, "y")
	e.dev.Fail["texture"] = true
	err := g.Render(e.surface, nil)
	if !errors.Is(err, fakegpu.ErrInjected) {
		t.Fatalf("Render = %v, want ErrInjected", err)
	}
}

func TestStatsCountDraws(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, scenarioA(), nil, "y")
	draw := object.DrawFunc(func(rec *object.Recorder) error {
		rec.Pass.Draw(3, 1, 0, 0)
		return nil
	})
	if err := g.Render(e.surface, map[string][]object.Drawable{"A": {draw}}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	st := g.Stats()
	if st.Frames != 1 || st.Passes != 2 || st.Images != 2 {
		t.Errorf("Stats = %+v", st)
	}
	if got := fmt.Sprint(g.Passes()); got != "[A B]" {
		t.Errorf("Passes = %s", got)
	}
}

func TestCloseReleasesImages(t *testing.T) {
	e := newEnv(t)
	g, err := New(e.ctx, scenarioA(), nil, "y")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.Render(e.surface, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	x, _ := g.Image("x")
	g.Close()
	if _, live := e.dev.Textures[x.Texture]; live {
		t.Error("image texture alive after Close")
	}
	if n := e.dev.LiveCount("sampler"); n != 0 {
		t.Errorf("live samplers after Close = %d", n)
	}
	if st := e.ctx.Bindings.Stats(); st.Groups != 0 {
		t.Errorf("bind groups of closed graph still cached: %d", st.Groups)
	}
}

func TestDiscardFrame(t *testing.T) {
	e := newEnv(t)
	g := e.newGraph(t, scenarioA(), nil, "y")
	f, err := g.BeginFrame(e.surface)
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if err := f.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := f.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if err := f.Discard(); !errors.Is(err, ErrFrameFinished) {
		t.Errorf("second Discard = %v, want ErrFrameFinished", err)
	}
	if len(e.dev.Submissions) != 0 {
		t.Error("discarded frame was submitted")
	}
	if _, err := g.BeginFrame(e.surface); err != nil {
		t.Errorf("BeginFrame after Discard: %v", err)
	}
}
