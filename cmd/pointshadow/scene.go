package main

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/graph"
	"github.com/gogpu/framegraph/mesh"
	"github.com/gogpu/framegraph/object"
)

// The shadow atlas holds the six cube faces in a row of square patches.
const (
	patchSize = 1024
	faces     = 6
)

// Shader paths, relative to the embedded shader files.
const (
	shadowShader  = "shaders/shadow_cast.wgsl"
	displayShader = "shaders/display_cubemap.wgsl"
	finalShader   = "shaders/final.wgsl"
)

// Cube face directions and up vectors, in patch order.
var (
	faceDirs = [faces]vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	faceUps  = [faces]vec3{{0, -1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}, {0, -1, 0}, {0, -1, 0}}
)

// shadowProj covers a cube face with a field of view 1% wider than 90
// degrees so sampling never crosses into a neighbouring patch.
func shadowProj() mat4 {
	return perspective(1, math32.Pi/2*1.01, 1, 250)
}

// faceViewProj returns the view-projection of face f for a light at pos.
func faceViewProj(pos vec3, f int) mat4 {
	return shadowProj().mul(lookAt(pos, pos.add(faceDirs[f]), faceUps[f]))
}

// patchBounds is the dynamic state drawing into the patch of face f.
func patchBounds(f int) *object.DynamicState {
	return object.Bounds(float32(f*patchSize), 0, patchSize, patchSize)
}

// caster is one shadow casting mesh and its model matrix.
type caster struct {
	mesh  *mesh.Mesh
	model mat4
}

// casters returns a floor and a ring of boxes around the light.
func casters() []caster {
	cs := []caster{{mesh: mesh.Plane(40, -4), model: identity()}}
	for i := range 4 {
		a := float32(i) * math32.Pi / 2
		pos := vec3{6 * math32.Cos(a), -2.5, 6 * math32.Sin(a)}
		cs = append(cs, caster{mesh: mesh.Box(2, 3, 2), model: translation(pos)})
	}
	cs = append(cs, caster{mesh: mesh.Box(1, 1, 1), model: translation(vec3{2, 1.5, -1}).mul(scaling(vec3{1.5, 0.5, 1.5}))})
	return cs
}

func matBytes(m mat4) []byte { return mesh.Float32Bytes(m[:]) }

// lightData is the shadow pass light: position and strength.
func lightData(pos vec3, strength float32) []byte {
	return mesh.Float32Bytes([]float32{pos[0], pos[1], pos[2], 1, strength, strength, strength, 1})
}

// finalLightData appends the face view-projections the final pass
// samples the atlas with.
func finalLightData(pos vec3, strength float32) []byte {
	data := lightData(pos, strength)
	for f := range faces {
		data = append(data, matBytes(faceViewProj(pos, f))...)
	}
	return data
}

// scene holds the objects of every pass.
type scene struct {
	light    vec3
	strength float32

	meshes  []*mesh.Mesh
	casters []*object.Object // one per mesh, drawn through shadow
	views   []*object.Set
	shadow  []object.Drawable

	quad *object.Object

	finals []*object.Object
	camera *object.Set
	final  []object.Drawable
}

func newScene(ctx object.BuildContext, g *graph.Graph) (*scene, error) {
	s := &scene{light: vec3{0, 0.5, 0}, strength: 60}
	if err := s.build(ctx, g); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *scene) build(ctx object.BuildContext, g *graph.Graph) error {
	shadowPass, err := g.Lookup("shadow")
	if err != nil {
		return err
	}
	viewPass, err := g.Lookup("cubemap_view")
	if err != nil {
		return err
	}
	finalPass, err := g.Lookup("final")
	if err != nil {
		return err
	}

	for f := range faces {
		view, err := object.NewSet(ctx, object.SetData{
			Label:   fmt.Sprintf("view_%d", f),
			Entries: []object.Entry{object.Uniform(matBytes(lookAt(s.light, s.light.add(faceDirs[f]), faceUps[f])))},
		})
		if err != nil {
			return err
		}
		s.views = append(s.views, view)
	}
	s.camera, err = object.NewSet(ctx, object.SetData{
		Label:   "camera",
		Entries: []object.Entry{object.Uniform(matBytes(identity()))},
	})
	if err != nil {
		return err
	}

	for _, c := range casters() {
		s.meshes = append(s.meshes, c.mesh)
		base, err := object.Prototype{
			VertexShader:   shadowShader,
			FragmentShader: shadowShader,
			Mesh:           c.mesh,
			Topology:       gputypes.PrimitiveTopologyTriangleList,
			DepthRead:      true,
			DepthWrite:     true,
			Sets: []object.SetData{
				{Label: "model", Entries: []object.Entry{object.Uniform(matBytes(c.model))}},
				{Label: "proj", Entries: []object.Entry{object.Uniform(matBytes(shadowProj()))}},
				{Label: "light", Entries: []object.Entry{object.Uniform(lightData(s.light, s.strength))}},
			},
			Defer: true,
		}.Build(ctx, shadowPass.Target())
		if err != nil {
			return fmt.Errorf("shadow caster %s: %w", c.mesh.Label, err)
		}
		s.casters = append(s.casters, base)
		for f, view := range s.views {
			face := base.Clone()
			face.AppendSet(view)
			face.SetDynamic(patchBounds(f))
			s.shadow = append(s.shadow, face)
		}

		final, err := object.Prototype{
			VertexShader:   finalShader,
			FragmentShader: finalShader,
			Mesh:           c.mesh,
			Topology:       gputypes.PrimitiveTopologyTriangleList,
			DepthRead:      true,
			DepthWrite:     true,
			Sets: []object.SetData{
				{Label: "model", Entries: []object.Entry{object.Uniform(matBytes(c.model))}},
				{Label: "light", Entries: []object.Entry{object.Uniform(finalLightData(s.light, s.strength))}},
			},
			Defer: true,
		}.Build(ctx, finalPass.Target())
		if err != nil {
			return fmt.Errorf("final object %s: %w", c.mesh.Label, err)
		}
		s.finals = append(s.finals, final)
		withCamera := final.Clone()
		withCamera.AppendSet(s.camera)
		s.final = append(s.final, withCamera)
	}

	quad := mesh.FullscreenQuad()
	s.meshes = append(s.meshes, quad)
	s.quad, err = object.Prototype{
		VertexShader:   displayShader,
		FragmentShader: displayShader,
		Mesh:           quad,
		Topology:       gputypes.PrimitiveTopologyTriangleList,
	}.Build(ctx, viewPass.Target())
	if err != nil {
		return fmt.Errorf("cubemap view: %w", err)
	}
	return nil
}

// setCamera uploads the camera matrix in place; the camera bind group
// stays cached across frames.
func (s *scene) setCamera(viewProj mat4) error {
	return s.camera.Upload(0, matBytes(viewProj))
}

// objects returns the drawables of every pass.
func (s *scene) objects() map[string][]object.Drawable {
	return map[string][]object.Drawable{
		"shadow":       s.shadow,
		"cubemap_view": {s.quad},
		"final":        s.final,
	}
}

func (s *scene) release() {
	for _, o := range s.casters {
		o.Release()
	}
	for _, o := range s.finals {
		o.Release()
	}
	if s.quad != nil {
		s.quad.Release()
	}
	for _, v := range s.views {
		v.Release()
	}
	if s.camera != nil {
		s.camera.Release()
	}
	for _, m := range s.meshes {
		m.Release()
	}
}
