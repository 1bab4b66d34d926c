package mesh

import "github.com/gogpu/gputypes"

// Position2DLayout is a single vec2 position at location 0.
func Position2DLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: 8,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
		},
	}
}

// PositionNormalLayout is a vec3 position at location 0 and a vec3 normal
// at location 1.
func PositionNormalLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: 24,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		},
	}
}

// FullscreenQuad returns a two-triangle quad covering clip space, for
// debug views and post-processing passes.
func FullscreenQuad() *Mesh {
	return New("fullscreen_quad", Position2DLayout(),
		[]float32{
			-1, -1,
			1, -1,
			-1, 1,
			1, 1,
		},
		[]uint32{0, 1, 2, 2, 1, 3},
	)
}

// FullscreenTriangle returns one oversized triangle covering clip space.
func FullscreenTriangle() *Mesh {
	return New("fullscreen_triangle", Position2DLayout(),
		[]float32{
			-1, -1,
			3, -1,
			-1, 3,
		},
		nil,
	)
}

// Box returns an axis-aligned box centered on the origin with outward
// normals, 24 vertices and 36 indices.
func Box(sx, sy, sz float32) *Mesh {
	hx, hy, hz := sx/2, sy/2, sz/2
	type face struct {
		n       [3]float32
		corners [4][3]float32
	}
	faces := []face{
		{[3]float32{1, 0, 0}, [4][3]float32{{hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}, {hx, -hy, hz}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}, {-hx, -hy, -hz}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-hx, hy, -hz}, {-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-hx, -hy, hz}, {-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}}},
		{[3]float32{0, 0, 1}, [4][3]float32{{hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}, {-hx, -hy, hz}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}, {hx, -hy, -hz}}},
	}
	vertices := make([]float32, 0, 24*6)
	indices := make([]uint32, 0, 36)
	for i, f := range faces {
		for _, c := range f.corners {
			vertices = append(vertices, c[0], c[1], c[2], f.n[0], f.n[1], f.n[2])
		}
		//nolint:gosec // G115: six faces
		base := uint32(4 * i)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return New("box", PositionNormalLayout(), vertices, indices)
}

// Plane returns a square in the XZ plane at height y facing up.
func Plane(size, y float32) *Mesh {
	h := size / 2
	return New("plane", PositionNormalLayout(),
		[]float32{
			-h, y, -h, 0, 1, 0,
			-h, y, h, 0, 1, 0,
			h, y, h, 0, 1, 0,
			h, y, -h, 0, 1, 0,
		},
		[]uint32{0, 1, 2, 0, 2, 3},
	)
}
