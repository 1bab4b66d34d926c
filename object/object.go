// Package object builds draw objects from prototypes.
//
// A [Prototype] names shaders, a mesh, fixed-function flags and the data of
// each binding set. Building it against a pass target uploads the mesh,
// allocates the sets and resolves the pipeline through the session's
// pipeline cache. The resulting [Object] draws itself into a [Recorder]:
//
//	obj, err := object.Prototype{
//	    VertexShader:   "shaders/shadow_cast.vert.wgsl",
//	    FragmentShader: "shaders/shadow_cast.frag.wgsl",
//	    Mesh:           mesh.Box(1, 1, 1),
//	    Topology:       gputypes.PrimitiveTopologyTriangleList,
//	    DepthRead:      true,
//	    DepthWrite:     true,
//	    Sets: []object.SetData{
//	        {Label: "model", Entries: []object.Entry{object.Uniform(model)}},
//	    },
//	    Dynamic: object.Bounds(0, 0, 1024, 1024),
//	}.Build(ctx, shadowPass.Target())
//
// Objects with different numbers and shapes of sets share the [Drawable]
// interface, so a pass draws a shadow caster with four sets and a
// fullscreen quad with none the same way.
package object

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/pipeline"
)

// Errors returned by object building and drawing.
var (
	// ErrNoMesh is returned when building a prototype without a mesh.
	ErrNoMesh = errors.New("object: prototype has no mesh")

	// ErrTargetMismatch is returned when an object is drawn in a pass whose
	// name or formats differ from the one it was built for.
	ErrTargetMismatch = errors.New("object: drawn outside its target pass")
)

// Prototype describes a draw object before it is bound to a pass.
type Prototype struct {
	VertexShader   string
	FragmentShader string

	Mesh       *mesh.Mesh
	Topology   gputypes.PrimitiveTopology
	DepthRead  bool
	DepthWrite bool

	// Sets are bound in order, starting at the target's SetBase.
	Sets []SetData

	Dynamic *DynamicState

	// Defer leaves the pipeline unresolved until the first draw. Set it
	// when sets are appended to the built object before it is drawn.
	Defer bool
}

// spec returns the pipeline spec for target with the given set shapes.
func (p *Prototype) spec(target pipeline.TargetFormat, shapes [][]gpucore.BindGroupLayoutEntry) pipeline.Spec {
	var layout []gputypes.VertexBufferLayout
	if p.Mesh != nil {
		layout = []gputypes.VertexBufferLayout{p.Mesh.Layout}
	}
	return pipeline.Spec{
		VertexShader:   p.VertexShader,
		FragmentShader: p.FragmentShader,
		VertexLayout:   layout,
		Topology:       p.Topology,
		DepthRead:      p.DepthRead,
		DepthWrite:     p.DepthWrite,
		Target:         target,
		Sets:           shapes,
	}
}

// Build uploads the mesh, allocates the sets and resolves the pipeline,
// unless the prototype defers it.
// The sets' bind groups are resolved through the binding cache when drawn.
func (p Prototype) Build(ctx BuildContext, target pipeline.TargetFormat) (*Object, error) {
	return p.build(ctx, target, false)
}

// BuildDirect is Build with every set's bind group created immediately
// and owned by the object, bypassing the binding cache.
func (p Prototype) BuildDirect(ctx BuildContext, target pipeline.TargetFormat) (*Object, error) {
	return p.build(ctx, target, true)
}

func (p *Prototype) build(ctx BuildContext, target pipeline.TargetFormat, direct bool) (*Object, error) {
	if p.Mesh == nil {
		return nil, ErrNoMesh
	}
	if err := p.Mesh.Upload(ctx.Device); err != nil {
		return nil, err
	}

	o := &Object{
		ctx:     ctx,
		mesh:    p.Mesh,
		dynamic: p.Dynamic,
	}
	for _, data := range p.Sets {
		var s *Set
		var err error
		if direct {
			s, err = NewDirectSet(ctx, data)
		} else {
			s, err = NewSet(ctx, data)
		}
		if err != nil {
			o.Release()
			return nil, err
		}
		o.sets = append(o.sets, s)
		o.owned = append(o.owned, s)
	}

	o.spec = p.spec(target, o.shapes())
	if p.Defer {
		return o, nil
	}
	id, err := ctx.Pipelines.GetOrBuild(o.spec)
	if err != nil {
		o.Release()
		return nil, err
	}
	o.pipeline = id
	return o, nil
}

// Object is a mesh, a pipeline and an ordered list of sets, ready to draw.
//
// Objects are not safe for concurrent use; they are mutated between frames
// and drawn by the recording goroutine.
type Object struct {
	ctx      BuildContext
	spec     pipeline.Spec
	pipeline gpucore.RenderPipelineID
	mesh     *mesh.Mesh
	sets     []*Set
	owned    []*Set
	dynamic  *DynamicState
}

func (o *Object) shapes() [][]gpucore.BindGroupLayoutEntry {
	shapes := make([][]gpucore.BindGroupLayoutEntry, len(o.sets))
	for i, s := range o.sets {
		shapes[i] = s.Shape()
	}
	return shapes
}

// Spec returns the pipeline spec of the object.
func (o *Object) Spec() pipeline.Spec { return o.spec }

// Pipeline returns the resolved pipeline, or InvalidID if it is resolved
// on the next draw.
func (o *Object) Pipeline() gpucore.RenderPipelineID { return o.pipeline }

// Sets returns the object's sets in bind order.
func (o *Object) Sets() []*Set { return o.sets }

// Set returns set i.
func (o *Object) Set(i int) *Set { return o.sets[i] }

// Mesh returns the object's mesh.
func (o *Object) Mesh() *mesh.Mesh { return o.mesh }

// SetDynamic replaces the dynamic viewport and scissor override.
func (o *Object) SetDynamic(d *DynamicState) { o.dynamic = d }

// Clone returns an object sharing the mesh, pipeline and sets of o. Sets
// appended to the clone do not affect o, and the clone owns nothing.
func (o *Object) Clone() *Object {
	c := *o
	c.sets = append([]*Set(nil), o.sets...)
	c.owned = nil
	return &c
}

// AppendSet adds a set after the existing ones. The pipeline spec gains
// the set's shape and is resolved again on the next draw. The caller keeps
// ownership of s.
func (o *Object) AppendSet(s *Set) {
	o.sets = append(o.sets, s)
	o.spec.Sets = o.shapes()
	o.pipeline = gpucore.InvalidID
}

// Draw binds the pipeline, the pass inputs and every set, applies the
// dynamic state and issues the draw over the mesh extents.
func (o *Object) Draw(rec *Recorder) error {
	if rec.Target.Key() != o.spec.Target.Key() {
		return fmt.Errorf("%w: built for %q, drawn in %q", ErrTargetMismatch, o.spec.Target.Name, rec.Target.Name)
	}
	if o.pipeline == gpucore.InvalidID {
		id, err := rec.Pipelines.GetOrBuild(o.spec)
		if err != nil {
			return err
		}
		o.pipeline = id
	}

	rec.Pass.SetPipeline(o.pipeline)
	base := rec.Target.SetBase()
	if rec.Inputs != gpucore.InvalidID {
		rec.Pass.SetBindGroup(0, rec.Inputs)
	}
	for i, s := range o.sets {
		group, err := s.resolve(rec)
		if err != nil {
			return err
		}
		//nolint:gosec // G115: set counts are bounded by GPU limits
		rec.Pass.SetBindGroup(base+uint32(i), group)
	}
	rec.applyDynamic(o.dynamic)

	vbuf, ibuf, format := o.mesh.Buffers()
	rec.Pass.SetVertexBuffer(0, vbuf, 0)
	if o.mesh.Indexed() {
		rec.Pass.SetIndexBuffer(ibuf, format, 0)
		rec.Pass.DrawIndexed(o.mesh.Count(), 1, 0, 0, 0)
	} else {
		rec.Pass.Draw(o.mesh.Count(), 1, 0, 0)
	}
	rec.draws++
	return nil
}

// Release destroys the sets the object built. The mesh and pipeline are
// shared and stay alive.
func (o *Object) Release() {
	for _, s := range o.owned {
		s.Release()
	}
	o.owned = nil
}
