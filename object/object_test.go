package object

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/binding"
	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/fakegpu"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/pipeline"
)

type shaderModules struct {
	dev *fakegpu.Device
	ids map[string]gpucore.ShaderModuleID
}

func (s *shaderModules) Module(path string) (gpucore.ShaderModuleID, error) {
	if id, ok := s.ids[path]; ok {
		return id, nil
	}
	id, err := s.dev.CreateShaderModule(&gpucore.ShaderModuleDesc{Label: path})
	if err == nil {
		s.ids[path] = id
	}
	return id, err
}

func newContext(t *testing.T) (BuildContext, *fakegpu.Device) {
	t.Helper()
	dev := fakegpu.New()
	ctx := BuildContext{
		Device:    dev,
		Pipelines: pipeline.NewCache(dev, &shaderModules{dev: dev, ids: map[string]gpucore.ShaderModuleID{}}),
		Bindings:  binding.NewCache(dev),
	}
	t.Cleanup(func() {
		ctx.Bindings.Close()
		ctx.Pipelines.Close()
	})
	return ctx, dev
}

var shadowTarget = pipeline.TargetFormat{
	Name:        "shadow",
	DepthFormat: gputypes.TextureFormatDepth32Float,
}

func mat() []byte { return make([]byte, 64) }

func casterPrototype() Prototype {
	return Prototype{
		VertexShader:   "shadow_cast.vert.wgsl",
		FragmentShader: "shadow_cast.frag.wgsl",
		Mesh:           mesh.Box(1, 1, 1),
		Topology:       gputypes.PrimitiveTopologyTriangleList,
		DepthRead:      true,
		DepthWrite:     true,
		Sets: []SetData{
			{Label: "model", Entries: []Entry{Uniform(mat())}},
			{Label: "proj", Entries: []Entry{Uniform(mat())}},
			{Label: "view", Entries: []Entry{Uniform(mat())}},
			{Label: "light", Entries: []Entry{Uniform(make([]byte, 32))}},
		},
		Dynamic: Bounds(1024, 0, 1024, 1024),
	}
}

// record draws ds into a fresh render pass and returns its commands.
func record(t *testing.T, ctx BuildContext, dev *fakegpu.Device, target pipeline.TargetFormat, inputs gpucore.BindGroupID, ds ...Drawable) []string {
	t.Helper()
	enc, err := dev.BeginCommands("test")
	if err != nil {
		t.Fatalf("BeginCommands: %v", err)
	}
	rp, err := enc.BeginRenderPass(&gpucore.RenderPassDesc{Label: target.Name})
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	rec := &Recorder{
		Pass: rp, Target: target, Width: 6144, Height: 1024, Inputs: inputs,
		Pipelines: ctx.Pipelines, Bindings: ctx.Bindings,
	}
	for _, d := range ds {
		if err := d.Draw(rec); err != nil {
			t.Fatalf("Draw: %v", err)
		}
	}
	if rec.Draws() != len(ds) {
		t.Errorf("Draws = %d, want %d", rec.Draws(), len(ds))
	}
	rp.End()
	if err := enc.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return dev.LastSubmission()[0].Cmds
}

func TestHeterogeneousObjectsDrawUniformly(t *testing.T) {
	ctx, dev := newContext(t)

	caster, err := casterPrototype().Build(ctx, shadowTarget)
	if err != nil {
		t.Fatalf("Build caster: %v", err)
	}
	quad, err := Prototype{
		VertexShader:   "fullscreen.vert.wgsl",
		FragmentShader: "clear.frag.wgsl",
		Mesh:           mesh.FullscreenQuad(),
		Topology:       gputypes.PrimitiveTopologyTriangleList,
	}.Build(ctx, shadowTarget)
	if err != nil {
		t.Fatalf("Build quad: %v", err)
	}

	cmds := record(t, ctx, dev, shadowTarget, gpucore.InvalidID, caster, quad)

	groups := 0
	for _, c := range cmds {
		var idx, id int
		if n, _ := fmt.Sscanf(c, "bindgroup %d %d", &idx, &id); n == 2 {
			groups++
		}
	}
	if groups != 4 {
		t.Errorf("bind group commands = %d, want 4 (caster only)", groups)
	}
	if cmds[0] != fmt.Sprintf("pipeline %d", caster.Pipeline()) {
		t.Errorf("first command = %q", cmds[0])
	}
	wantViewport := "viewport 1024 0 1024 1024"
	found := false
	for _, c := range cmds {
		if c == wantViewport {
			found = true
		}
	}
	if !found {
		t.Errorf("caster viewport %q not recorded in %v", wantViewport, cmds)
	}
	if last := cmds[len(cmds)-2]; last != "drawindexed 6" {
		t.Errorf("quad draw = %q, want drawindexed 6", last)
	}
}

func TestBuildSharesPipelinesAndLayouts(t *testing.T) {
	ctx, dev := newContext(t)
	for i := 0; i < 6; i++ {
		if _, err := casterPrototype().Build(ctx, shadowTarget); err != nil {
			t.Fatalf("Build %d: %v", i, err)
		}
	}
	if n := dev.Count("pipeline"); n != 1 {
		t.Errorf("pipelines = %d, want 1", n)
	}
	// Four uniform sets share one layout shape.
	if n := dev.Count("layout"); n != 1 {
		t.Errorf("layouts = %d, want 1", n)
	}
	// Meshes are separate instances, so each uploads its own buffers.
	if n := dev.Count("buffer"); n != 6*(2+4) {
		t.Errorf("buffers = %d, want %d", n, 6*(2+4))
	}
}

func TestUploadKeepsBindingReallocateRebuilds(t *testing.T) {
	ctx, dev := newContext(t)
	obj, err := casterPrototype().Build(ctx, shadowTarget)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	record(t, ctx, dev, shadowTarget, gpucore.InvalidID, obj)
	if n := dev.Count("bindgroup"); n != 4 {
		t.Fatalf("bind groups after first draw = %d, want 4", n)
	}

	view := obj.Set(2)
	if err := view.Upload(0, mat()); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	record(t, ctx, dev, shadowTarget, gpucore.InvalidID, obj)
	if n := dev.Count("bindgroup"); n != 4 {
		t.Errorf("bind groups after Upload = %d, want 4", n)
	}

	before, _ := view.Buffer(0)
	if err := view.Reallocate(0, mat()); err != nil {
		t.Fatalf("Reallocate: %v", err)
	}
	after, _ := view.Buffer(0)
	if before == after {
		t.Fatal("Reallocate kept the buffer identity")
	}
	record(t, ctx, dev, shadowTarget, gpucore.InvalidID, obj)
	if n := dev.Count("bindgroup"); n != 5 {
		t.Errorf("bind groups after Reallocate = %d, want 5", n)
	}

	// The replaced buffer lives until the next reallocation.
	if _, live := dev.Buffers[before]; !live {
		t.Error("old buffer destroyed while a frame may read it")
	}
	if err := view.Reallocate(0, mat()); err != nil {
		t.Fatalf("Reallocate: %v", err)
	}
	if _, live := dev.Buffers[before]; live {
		t.Error("old buffer not destroyed on the next reallocation")
	}
}

func TestReallocateEvictsCachedGroups(t *testing.T) {
	ctx, dev := newContext(t)
	obj, err := casterPrototype().Build(ctx, shadowTarget)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	record(t, ctx, dev, shadowTarget, gpucore.InvalidID, obj)

	view := obj.Set(2)
	for i := 0; i < 100; i++ {
		if err := view.Reallocate(0, mat()); err != nil {
			t.Fatalf("Reallocate %d: %v", i, err)
		}
		record(t, ctx, dev, shadowTarget, gpucore.InvalidID, obj)
		if n := ctx.Bindings.Stats().Groups; n != 4 {
			t.Fatalf("cached groups after %d reallocations = %d, want 4", i+1, n)
		}
	}
	// One replaced group waits for the next reallocation.
	if n := dev.LiveCount("bindgroup"); n != 5 {
		t.Errorf("live bind groups = %d, want 5", n)
	}

	obj.Release()
	if n := ctx.Bindings.Stats().Groups; n != 0 {
		t.Errorf("cached groups after Release = %d, want 0", n)
	}
	if n := dev.LiveCount("bindgroup"); n != 0 {
		t.Errorf("live bind groups after Release = %d, want 0", n)
	}
}

func TestUploadErrors(t *testing.T) {
	ctx, _ := newContext(t)
	s, err := NewSet(ctx, SetData{Label: "mixed", Entries: []Entry{
		Uniform(mat()),
		Sampler(7),
	}})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if err := s.Upload(1, mat()); !errors.Is(err, ErrNotBuffer) {
		t.Errorf("upload into sampler = %v, want ErrNotBuffer", err)
	}
	if err := s.Upload(5, mat()); !errors.Is(err, ErrEntryRange) {
		t.Errorf("upload out of range = %v, want ErrEntryRange", err)
	}
	if _, err := NewSet(ctx, SetData{Label: "empty", Entries: []Entry{{}}}); !errors.Is(err, ErrEmptyEntry) {
		t.Errorf("empty entry = %v, want ErrEmptyEntry", err)
	}
}

func TestBuildDirect(t *testing.T) {
	ctx, dev := newContext(t)
	obj, err := casterPrototype().BuildDirect(ctx, shadowTarget)
	if err != nil {
		t.Fatalf("BuildDirect: %v", err)
	}
	if n := dev.Count("bindgroup"); n != 4 {
		t.Fatalf("bind groups after BuildDirect = %d, want 4", n)
	}
	record(t, ctx, dev, shadowTarget, gpucore.InvalidID, obj)
	if st := ctx.Bindings.Stats(); st.Hits+st.Misses != 0 {
		t.Errorf("direct sets touched the binding cache: %+v", st)
	}

	// Reallocating a direct set rebuilds its own group immediately.
	if err := obj.Set(0).Reallocate(0, mat()); err != nil {
		t.Fatalf("Reallocate: %v", err)
	}
	if n := dev.LiveCount("bindgroup"); n != 4 {
		t.Errorf("live bind groups = %d, want 4", n)
	}

	obj.Release()
	if n := dev.LiveCount("bindgroup"); n != 0 {
		t.Errorf("live bind groups after Release = %d", n)
	}
}

func TestCloneAppendSet(t *testing.T) {
	ctx, dev := newContext(t)
	target := pipeline.TargetFormat{
		Name:         "final",
		ColorFormats: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
		DepthFormat:  gputypes.TextureFormatDepth32Float,
	}
	base, err := Prototype{
		VertexShader:   "final.vert.wgsl",
		FragmentShader: "final.frag.wgsl",
		Mesh:           mesh.Box(1, 1, 1),
		Topology:       gputypes.PrimitiveTopologyTriangleList,
		DepthRead:      true,
		DepthWrite:     true,
		Sets:           []SetData{{Label: "model", Entries: []Entry{Uniform(mat())}}},
	}.Build(ctx, target)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	camera, err := NewSet(ctx, SetData{Label: "camera", Entries: []Entry{Uniform(mat())}})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	defer camera.Release()

	frame := base.Clone()
	frame.AppendSet(camera)
	if len(base.Sets()) != 1 || len(frame.Sets()) != 2 {
		t.Fatalf("sets: base %d, clone %d", len(base.Sets()), len(frame.Sets()))
	}
	if frame.Pipeline() != gpucore.InvalidID {
		t.Error("appended set did not defer the pipeline")
	}

	cmds := record(t, ctx, dev, target, gpucore.InvalidID, frame)
	if frame.Pipeline() == base.Pipeline() {
		t.Error("clone with an extra set shares the base pipeline")
	}
	want := fmt.Sprintf("bindgroup 1 %d", mustLookup(t, ctx, camera))
	if !contains(cmds, want) {
		t.Errorf("camera set not bound at group 1: %v", cmds)
	}

	// A second clone with the same shape reuses the pipeline.
	again := base.Clone()
	again.AppendSet(camera)
	record(t, ctx, dev, target, gpucore.InvalidID, again)
	if n := dev.Count("pipeline"); n != 2 {
		t.Errorf("pipelines = %d, want 2", n)
	}

	// Release on a clone leaves the base's sets alive.
	frame.Release()
	if _, err := base.Set(0).Buffer(0); err != nil {
		t.Fatal(err)
	}
	if n := dev.LiveCount("buffer"); n < 4 {
		t.Errorf("clone released shared buffers: %d live", n)
	}
}

func TestDeferredBuild(t *testing.T) {
	ctx, dev := newContext(t)
	proto := casterPrototype()
	proto.Sets = proto.Sets[:3]
	proto.Defer = true
	base, err := proto.Build(ctx, shadowTarget)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer base.Release()
	if base.Pipeline() != gpucore.InvalidID || dev.Count("pipeline") != 0 {
		t.Fatal("deferred build resolved a pipeline")
	}

	view, err := NewSet(ctx, SetData{Label: "view", Entries: []Entry{Uniform(mat())}})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	defer view.Release()
	face := base.Clone()
	face.AppendSet(view)
	record(t, ctx, dev, shadowTarget, gpucore.InvalidID, face)
	if n := dev.Count("pipeline"); n != 1 {
		t.Errorf("pipelines = %d, want only the four-set one", n)
	}
	if got := len(face.Spec().Sets); got != 4 {
		t.Errorf("spec sets = %d, want 4", got)
	}
}

func TestInputsBoundAtGroupZero(t *testing.T) {
	ctx, dev := newContext(t)
	target := pipeline.TargetFormat{
		Name:         "cubemap_view",
		ColorFormats: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
		Inputs: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Kind: gpucore.BindingNonFilteringSampler, Visibility: gputypes.ShaderStageFragment},
			{Binding: 1, Kind: gpucore.BindingDepthTexture, Visibility: gputypes.ShaderStageFragment},
		},
	}
	obj, err := Prototype{
		VertexShader:   "fullscreen.vert.wgsl",
		FragmentShader: "display_cubemap.frag.wgsl",
		Mesh:           mesh.FullscreenQuad(),
		Topology:       gputypes.PrimitiveTopologyTriangleList,
		Sets:           []SetData{{Label: "params", Entries: []Entry{Uniform(make([]byte, 16))}}},
	}.Build(ctx, target)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cmds := record(t, ctx, dev, target, 42, obj)
	if !contains(cmds, "bindgroup 0 42") {
		t.Errorf("inputs not bound at group 0: %v", cmds)
	}
	if !contains(cmds, fmt.Sprintf("bindgroup 1 %d", mustLookup(t, ctx, obj.Set(0)))) {
		t.Errorf("object set not bound at group 1: %v", cmds)
	}
}

func TestDrawTargetMismatch(t *testing.T) {
	ctx, dev := newContext(t)
	obj, err := casterPrototype().Build(ctx, shadowTarget)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	enc, _ := dev.BeginCommands("test")
	rp, _ := enc.BeginRenderPass(&gpucore.RenderPassDesc{Label: "final"})
	rec := &Recorder{Pass: rp, Target: pipeline.TargetFormat{Name: "final"}, Pipelines: ctx.Pipelines, Bindings: ctx.Bindings}
	if err := obj.Draw(rec); !errors.Is(err, ErrTargetMismatch) {
		t.Errorf("Draw = %v, want ErrTargetMismatch", err)
	}
}

func TestDrawTargetFormatMismatch(t *testing.T) {
	ctx, dev := newContext(t)
	obj, err := casterPrototype().Build(ctx, shadowTarget)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer obj.Release()
	enc, _ := dev.BeginCommands("test")
	rp, _ := enc.BeginRenderPass(&gpucore.RenderPassDesc{Label: "shadow"})
	defer enc.Discard()
	same := pipeline.TargetFormat{Name: "shadow", DepthFormat: gputypes.TextureFormatDepth24Plus}
	rec := &Recorder{Pass: rp, Target: same, Pipelines: ctx.Pipelines, Bindings: ctx.Bindings}
	if err := obj.Draw(rec); !errors.Is(err, ErrTargetMismatch) {
		t.Errorf("Draw with another depth format = %v, want ErrTargetMismatch", err)
	}
	if rec.Draws() != 0 {
		t.Errorf("Draws = %d, want 0", rec.Draws())
	}
}

func TestBuildErrors(t *testing.T) {
	ctx, dev := newContext(t)
	if _, err := (Prototype{}).Build(ctx, shadowTarget); !errors.Is(err, ErrNoMesh) {
		t.Errorf("no mesh = %v, want ErrNoMesh", err)
	}

	dev.Fail["pipeline"] = true
	if _, err := casterPrototype().Build(ctx, shadowTarget); !errors.Is(err, fakegpu.ErrInjected) {
		t.Fatalf("pipeline failure = %v", err)
	}
	// Only the mesh buffers survive; the sets were released.
	if n := dev.LiveCount("buffer"); n != 2 {
		t.Errorf("live buffers after failed build = %d, want 2", n)
	}
}

func TestDrawFunc(t *testing.T) {
	ctx, dev := newContext(t)
	called := 0
	d := DrawFunc(func(rec *Recorder) error {
		called++
		rec.Pass.Draw(3, 1, 0, 0)
		rec.draws++
		return nil
	})
	cmds := record(t, ctx, dev, shadowTarget, gpucore.InvalidID, d)
	if called != 1 || !contains(cmds, "draw 3") {
		t.Errorf("called = %d, cmds = %v", called, cmds)
	}
}

func mustLookup(t *testing.T, ctx BuildContext, s *Set) gpucore.BindGroupID {
	t.Helper()
	id, ok := ctx.Bindings.Lookup(s.Layout(), s.Entries())
	if !ok {
		t.Fatalf("set %q not in binding cache", s.label)
	}
	return id
}

func contains(cmds []string, want string) bool {
	for _, c := range cmds {
		if c == want {
			return true
		}
	}
	return false
}
