// Package mesh holds vertex and index data for draw objects.
//
// A Mesh is CPU-side geometry plus the vertex layout that describes it.
// Upload copies it into immutable device buffers once; every object built
// from the mesh shares those buffers. Per-frame data belongs in object
// sets, not in meshes.
package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gpucore"
)

// ErrEmpty is returned when uploading a mesh without vertices.
var ErrEmpty = errors.New("mesh: no vertices")

// Mesh is vertex data, optional indices and their layout.
type Mesh struct {
	Label string

	// Vertices holds VertexCount tightly packed vertices of Layout.
	Vertices    []byte
	VertexCount uint32

	// Indices is nil for non-indexed meshes.
	Indices []uint32

	Layout gputypes.VertexBufferLayout

	mu      sync.Mutex
	dev     gpucore.Device
	vbuf    gpucore.BufferID
	ibuf    gpucore.BufferID
	iformat gputypes.IndexFormat
}

// New creates a mesh from float32 vertex data laid out by layout.
func New(label string, layout gputypes.VertexBufferLayout, vertices []float32, indices []uint32) *Mesh {
	m := &Mesh{
		Label:    label,
		Vertices: Float32Bytes(vertices),
		Indices:  indices,
		Layout:   layout,
	}
	if layout.ArrayStride > 0 {
		//nolint:gosec // G115: vertex counts fit in uint32
		m.VertexCount = uint32(uint64(len(m.Vertices)) / layout.ArrayStride)
	}
	return m
}

// Indexed reports whether the mesh draws with an index buffer.
func (m *Mesh) Indexed() bool { return len(m.Indices) > 0 }

// Count returns the number of vertices or indices a draw consumes.
func (m *Mesh) Count() uint32 {
	if m.Indexed() {
		//nolint:gosec // G115: index counts fit in uint32
		return uint32(len(m.Indices))
	}
	return m.VertexCount
}

// Upload copies the mesh into device buffers. Only the first call on a
// device does any work.
func (m *Mesh) Upload(dev gpucore.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == dev && m.vbuf != gpucore.InvalidID {
		return nil
	}
	if m.VertexCount == 0 {
		return fmt.Errorf("upload %q: %w", m.Label, ErrEmpty)
	}
	if m.dev != nil {
		m.releaseLocked()
	}

	vbuf, err := upload(dev, m.Label+"_vertices", m.Vertices, gputypes.BufferUsageVertex)
	if err != nil {
		return fmt.Errorf("upload %q: %w", m.Label, err)
	}
	var ibuf gpucore.BufferID
	format := gputypes.IndexFormatUint16
	if m.Indexed() {
		var data []byte
		data, format = encodeIndices(m.Indices)
		ibuf, err = upload(dev, m.Label+"_indices", data, gputypes.BufferUsageIndex)
		if err != nil {
			dev.DestroyBuffer(vbuf)
			return fmt.Errorf("upload %q: %w", m.Label, err)
		}
	}
	m.dev, m.vbuf, m.ibuf, m.iformat = dev, vbuf, ibuf, format
	return nil
}

func upload(dev gpucore.Device, label string, data []byte, usage gputypes.BufferUsage) (gpucore.BufferID, error) {
	id, err := dev.CreateBuffer(&gpucore.BufferDesc{
		Label: label,
		Size:  alignSize(uint64(len(data))),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := dev.WriteBuffer(id, 0, data); err != nil {
		dev.DestroyBuffer(id)
		return gpucore.InvalidID, err
	}
	return id, nil
}

// Buffers returns the uploaded vertex and index buffers. The index buffer
// is InvalidID for non-indexed meshes.
func (m *Mesh) Buffers() (vertex, index gpucore.BufferID, format gputypes.IndexFormat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vbuf, m.ibuf, m.iformat
}

// Release destroys the device buffers.
func (m *Mesh) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

func (m *Mesh) releaseLocked() {
	if m.dev == nil {
		return
	}
	if m.vbuf != gpucore.InvalidID {
		m.dev.DestroyBuffer(m.vbuf)
	}
	if m.ibuf != gpucore.InvalidID {
		m.dev.DestroyBuffer(m.ibuf)
	}
	m.dev, m.vbuf, m.ibuf = nil, gpucore.InvalidID, gpucore.InvalidID
}

// encodeIndices packs indices as uint16 when they all fit.
func encodeIndices(indices []uint32) ([]byte, gputypes.IndexFormat) {
	wide := false
	for _, i := range indices {
		if i > math.MaxUint16 {
			wide = true
			break
		}
	}
	if wide {
		out := make([]byte, 4*len(indices))
		for n, i := range indices {
			binary.LittleEndian.PutUint32(out[4*n:], i)
		}
		return out, gputypes.IndexFormatUint32
	}
	out := make([]byte, 2*len(indices))
	for n, i := range indices {
		//nolint:gosec // G115: checked above
		binary.LittleEndian.PutUint16(out[2*n:], uint16(i))
	}
	return out, gputypes.IndexFormatUint16
}

// alignSize rounds buffer sizes up to 4 bytes, as copies require.
func alignSize(n uint64) uint64 {
	return (n + 3) &^ 3
}

// Float32Bytes encodes floats little-endian.
func Float32Bytes(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}
