package object

import (
	"github.com/gogpu/framegraph/binding"
	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/pipeline"
)

// BuildContext carries the collaborators needed to build objects and sets.
// The caches are owned by the rendering session and shared by every
// object built against them.
type BuildContext struct {
	Device    gpucore.Device
	Pipelines *pipeline.Cache
	Bindings  *binding.Cache
}

// Recorder is the recording context of one render pass, handed to every
// Drawable registered for it.
type Recorder struct {
	Pass gpucore.RenderPassEncoder

	// Target is the format of the pass being recorded.
	Target pipeline.TargetFormat

	// Width and Height are the attachment size; draws without a dynamic
	// override use the full target.
	Width, Height uint32

	// Inputs is the pass input bind group, bound at group 0 after every
	// pipeline change. InvalidID when the pass samples nothing.
	Inputs gpucore.BindGroupID

	Pipelines *pipeline.Cache
	Bindings  *binding.Cache

	draws int
}

// Draws returns the number of draw calls recorded so far.
func (r *Recorder) Draws() int { return r.draws }

// Drawable is anything a pass can draw. Objects of different set shapes
// are drawn through it uniformly.
type Drawable interface {
	Draw(rec *Recorder) error
}

// DrawFunc adapts a function to a Drawable.
type DrawFunc func(rec *Recorder) error

// Draw calls f(rec).
func (f DrawFunc) Draw(rec *Recorder) error { return f(rec) }

// DynamicState overrides the viewport and scissor of a draw. Nil fields
// fall back to the full target.
type DynamicState struct {
	Viewport *gpucore.Viewport
	Scissor  *gpucore.Scissor
}

// Bounds returns a dynamic state that draws into the rectangle at origin
// with the given size and the full depth range.
func Bounds(x, y, width, height float32) *DynamicState {
	return &DynamicState{Viewport: &gpucore.Viewport{
		X: x, Y: y, Width: width, Height: height, MinDepth: 0, MaxDepth: 1,
	}}
}

func (r *Recorder) applyDynamic(d *DynamicState) {
	vp := gpucore.Viewport{Width: float32(r.Width), Height: float32(r.Height), MaxDepth: 1}
	sc := gpucore.Scissor{Width: r.Width, Height: r.Height}
	if d != nil {
		if d.Viewport != nil {
			vp = *d.Viewport
		}
		if d.Scissor != nil {
			sc = *d.Scissor
		}
	}
	r.Pass.SetViewport(vp)
	r.Pass.SetScissorRect(sc)
}
