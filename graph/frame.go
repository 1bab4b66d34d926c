package graph

import (
	"fmt"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/logging"
	"github.com/gogpu/framegraph/object"
)

// Frame records one frame. Passes run strictly in declared order; a
// Drawable must be added before its pass runs.
type Frame struct {
	g       *Graph
	enc     gpucore.CommandEncoder
	surface gpucore.Surface
	objects [][]object.Drawable
	next    int
	draws   int
	done    bool
}

// BeginFrame starts a frame on surface. Textures retired by an earlier
// resize are destroyed here, and a changed surface size rebuilds the
// window-relative images before anything is recorded.
func (g *Graph) BeginFrame(surface gpucore.Surface) (*Frame, error) {
	if g.frame != nil {
		return nil, ErrFrameInProgress
	}
	g.destroyRetired()

	w, h := surface.Size()
	if w == 0 || h == 0 {
		return nil, &ConfigError{Kind: ErrInvalidImage, Detail: fmt.Sprintf("surface is %dx%d", w, h)}
	}
	if err := g.resize(w, h); err != nil {
		return nil, err
	}

	enc, err := g.ctx.Device.BeginCommands("frame")
	if err != nil {
		return nil, fmt.Errorf("graph: begin frame: %w", err)
	}
	f := &Frame{
		g:       g,
		enc:     enc,
		surface: surface,
		objects: make([][]object.Drawable, len(g.passes)),
	}
	g.frame = f
	return f, nil
}

// Add registers drawables for a pass of this frame.
func (f *Frame) Add(ref PassRef, ds ...object.Drawable) error {
	if f.done {
		return ErrFrameFinished
	}
	if ref.g != f.g {
		return &ConfigError{Kind: ErrUnknownPass, Detail: "pass of another graph"}
	}
	if ref.i < f.next {
		return fmt.Errorf("%w: %q", ErrPassRecorded, ref.Name())
	}
	f.objects[ref.i] = append(f.objects[ref.i], ds...)
	return nil
}

// Next returns the pass that the next Advance records, if any.
func (f *Frame) Next() (PassRef, bool) {
	if f.done || f.next >= len(f.g.passes) {
		return PassRef{}, false
	}
	return PassRef{g: f.g, i: f.next}, true
}

// Advance records the next pass. An error ends the frame: the recording
// is discarded and nothing is presented.
func (f *Frame) Advance() error {
	if f.done {
		return ErrFrameFinished
	}
	if f.next >= len(f.g.passes) {
		return ErrNoMorePasses
	}
	i := f.next
	f.next++
	if err := f.runPass(i); err != nil {
		f.abort()
		return err
	}
	return nil
}

// Finish records the remaining passes, draws the output image onto the
// surface, submits and presents.
func (f *Frame) Finish() error {
	if f.done {
		return ErrFrameFinished
	}
	for f.next < len(f.g.passes) {
		if err := f.Advance(); err != nil {
			return err
		}
	}
	if err := f.present(); err != nil {
		f.abort()
		return err
	}

	f.done = true
	f.g.frame = nil
	if err := f.enc.Submit(); err != nil {
		return fmt.Errorf("graph: submit: %w", err)
	}
	if err := f.surface.Present(); err != nil {
		return fmt.Errorf("graph: present: %w", err)
	}

	st := &f.g.stats
	st.Frames++
	st.Passes = len(f.g.passes)
	st.Draws = f.draws
	return nil
}

// Discard abandons the frame. Nothing recorded so far is submitted.
func (f *Frame) Discard() error {
	if f.done {
		return ErrFrameFinished
	}
	f.abort()
	return nil
}

func (f *Frame) abort() {
	if f.done {
		return
	}
	f.done = true
	f.enc.Discard()
	f.g.frame = nil
}

func (f *Frame) runPass(i int) error {
	g := f.g
	ps := &g.passes[i]
	for _, spec := range ps.pass.Creates {
		if err := g.ensure(spec.Tag); err != nil {
			return err
		}
	}

	var inputs gpucore.BindGroupID
	if len(ps.pass.Needs) > 0 {
		var err error
		inputs, err = g.inputGroup(ps.target.Inputs, ps.pass.Needs)
		if err != nil {
			return fmt.Errorf("graph: pass %q: inputs: %w", ps.pass.Name, err)
		}
	}

	rp, err := f.enc.BeginRenderPass(g.passDesc(ps))
	if err != nil {
		return fmt.Errorf("graph: pass %q: %w", ps.pass.Name, err)
	}
	size := g.images[ps.pass.Creates[0].Tag].img
	rec := &object.Recorder{
		Pass:      rp,
		Target:    ps.target,
		Width:     size.Width,
		Height:    size.Height,
		Inputs:    inputs,
		Pipelines: g.ctx.Pipelines,
		Bindings:  g.ctx.Bindings,
	}
	for _, d := range f.objects[i] {
		if err := d.Draw(rec); err != nil {
			rp.End()
			return fmt.Errorf("graph: pass %q: %w", ps.pass.Name, err)
		}
	}
	rp.End()
	f.draws += rec.Draws()
	logging.L().Debug("graph: pass recorded", "pass", ps.pass.Name, "draws", rec.Draws())
	return nil
}

func (g *Graph) passDesc(ps *passState) *gpucore.RenderPassDesc {
	clearColor := g.opts.clearColor
	if ps.pass.Clear.Color != nil {
		clearColor = *ps.pass.Clear.Color
	}
	desc := &gpucore.RenderPassDesc{Label: ps.pass.Name}
	for _, tag := range ps.colors {
		desc.Color = append(desc.Color, gpucore.ColorAttachment{
			Texture: g.images[tag].img.Texture,
			Clear:   clearColor,
		})
	}
	if ps.depth != "" {
		clearDepth := float32(1)
		if ps.pass.Clear.Depth != nil {
			clearDepth = *ps.pass.Clear.Depth
		}
		desc.Depth = &gpucore.DepthAttachment{
			Texture: g.images[ps.depth].img.Texture,
			Clear:   clearDepth,
		}
	}
	return desc
}

// Render records and presents one frame with the drawables registered per
// pass name. Unknown names are reported before anything is recorded.
func (g *Graph) Render(surface gpucore.Surface, objects map[string][]object.Drawable) error {
	if err := g.Validate(objects); err != nil {
		return err
	}
	f, err := g.BeginFrame(surface)
	if err != nil {
		return err
	}
	for name, ds := range objects {
		// Validated above.
		ref, _ := g.Lookup(name)
		if err := f.Add(ref, ds...); err != nil {
			f.abort()
			return err
		}
	}
	return f.Finish()
}
