package main

import (
	"github.com/chewxy/math32"
)

// vec3 is a point or direction.
type vec3 [3]float32

func (a vec3) add(b vec3) vec3      { return vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a vec3) sub(b vec3) vec3      { return vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a vec3) dot(b vec3) float32   { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a vec3) scale(s float32) vec3 { return vec3{a[0] * s, a[1] * s, a[2] * s} }
func (a vec3) length() float32      { return math32.Sqrt(a.dot(a)) }
func (a vec3) normalize() vec3      { return a.scale(1 / a.length()) }
func (a vec3) cross(b vec3) vec3 {
	return vec3{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}

// mat4 is a column-major 4x4 matrix, the layout WGSL expects.
type mat4 [16]float32

func identity() mat4 {
	return mat4{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

func scaling(s vec3) mat4 {
	m := identity()
	m[0], m[5], m[10] = s[0], s[1], s[2]
	return m
}

func translation(t vec3) mat4 {
	m := identity()
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// mul returns a*b.
func (a mat4) mul(b mat4) mat4 {
	var c mat4
	for col := range 4 {
		for row := range 4 {
			var sum float32
			for k := range 4 {
				sum += a[k*4+row] * b[col*4+k]
			}
			c[col*4+row] = sum
		}
	}
	return c
}

// transform applies m to the point p and divides by w.
func (a mat4) transform(p vec3) vec3 {
	var out [4]float32
	in := [4]float32{p[0], p[1], p[2], 1}
	for row := range 4 {
		for k := range 4 {
			out[row] += a[k*4+row] * in[k]
		}
	}
	return vec3{out[0] / out[3], out[1] / out[3], out[2] / out[3]}
}

// perspective is a right-handed projection with depth mapped to [0, 1].
func perspective(aspect, fovy, near, far float32) mat4 {
	f := 1 / math32.Tan(fovy/2)
	return mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, far / (near - far), -1,
		0, 0, near * far / (near - far), 0,
	}
}

// lookAt is a right-handed view matrix.
func lookAt(eye, center, up vec3) mat4 {
	f := center.sub(eye).normalize()
	s := f.cross(up).normalize()
	u := s.cross(f)
	return mat4{
		s[0], u[0], -f[0], 0,
		s[1], u[1], -f[1], 0,
		s[2], u[2], -f[2], 0,
		-s.dot(eye), -u.dot(eye), f.dot(eye), 1,
	}
}

// orbitCamera circles the origin at a fixed height.
type orbitCamera struct {
	radius, height float32
	yaw            float32
	speed          float32 // radians per second
}

func defaultCamera() *orbitCamera {
	return &orbitCamera{radius: 14, height: 7, speed: 0.5}
}

func (c *orbitCamera) update(dt float32) {
	c.yaw = math32.Mod(c.yaw+c.speed*dt, 2*math32.Pi)
}

func (c *orbitCamera) eye() vec3 {
	return vec3{c.radius * math32.Cos(c.yaw), c.height, c.radius * math32.Sin(c.yaw)}
}

// viewProj returns the camera matrix for a target of the given aspect.
func (c *orbitCamera) viewProj(aspect float32) mat4 {
	proj := perspective(aspect, math32.Pi/3, 0.1, 100)
	return proj.mul(lookAt(c.eye(), vec3{}, vec3{0, 1, 0}))
}
