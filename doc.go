// Package framegraph is a render-graph engine core on WebGPU.
//
// An application describes its frame as an ordered list of passes that
// create and sample tagged images, builds draw objects against those
// passes and renders. The engine deduplicates render pipelines by their
// structural description and bind groups by the identity of the
// resources they bind, so thousands of objects that share a material cost
// one pipeline and one bind group.
//
// # Packages
//
//   - graph: pass lists, validation, image lifetime, frames and the
//     presented output tag
//   - pipeline: the render pipeline cache
//   - binding: the bind group cache
//   - object: prototypes, draw objects, binding sets and dynamic state
//   - mesh: vertex and index data and upload
//   - shader: WGSL compilation through naga, cached by path
//   - asset: image decoding and texture upload
//   - control: key-driven output switching
//   - timing: frame and stage timers
//   - backend/native: the gpucore.Device on gogpu/wgpu HAL
//
// # Quick Start
//
//	dev, _ := native.OpenNoop()
//	s := framegraph.NewSession(dev, framegraph.WithShaders(os.DirFS("shaders")))
//	defer s.Close()
//
//	g, _ := s.NewGraph([]graph.Pass{
//	    {Name: "shadow", Creates: []graph.ImageSpec{{Tag: "shadow_map", ...}}},
//	    {Name: "final", Creates: ..., Needs: []string{"shadow_map"}},
//	}, nil, "final_color")
//
//	shadow, _ := g.Lookup("shadow")
//	caster, _ := object.Prototype{...}.Build(s.BuildContext(), shadow.Target())
//
//	err := s.RenderFrame(g, surface, func(f *graph.Frame) error {
//	    return f.Add(shadow, caster)
//	})
//
// # Logging
//
// framegraph is silent by default. See SetLogger.
package framegraph
