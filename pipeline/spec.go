package pipeline

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/gogpu/gputypes"
	"github.com/twmb/murmur3"

	"github.com/gogpu/framegraph/gpucore"
)

// Default shader entry points.
const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
)

// TargetFormat identifies the render pass a pipeline draws into.
// Pipelines built for different targets are distinct even when the
// attachment formats match.
type TargetFormat struct {
	// Name is the identity of the target pass.
	Name string

	ColorFormats []gputypes.TextureFormat

	// DepthFormat is TextureFormatUndefined when the pass has no depth
	// attachment.
	DepthFormat gputypes.TextureFormat

	// Inputs is the shape of bind group 0 when the pass samples images
	// produced by earlier passes. Nil for passes without inputs.
	Inputs []gpucore.BindGroupLayoutEntry
}

// SetBase returns the first bind group index available to draw objects.
func (t TargetFormat) SetBase() uint32 {
	if len(t.Inputs) > 0 {
		return 1
	}
	return 0
}

// Spec is the structural description of a render pipeline. Two specs with
// equal fields are the same pipeline, wherever they were created.
type Spec struct {
	// VertexShader and FragmentShader are shader paths, resolved by the
	// cache's ShaderSource.
	VertexShader   string
	FragmentShader string

	// VertexEntry and FragmentEntry default to vs_main and fs_main.
	VertexEntry   string
	FragmentEntry string

	VertexLayout []gputypes.VertexBufferLayout
	Topology     gputypes.PrimitiveTopology
	DepthRead    bool
	DepthWrite   bool

	Target TargetFormat

	// Sets is the layout shape of each draw-object bind group, starting at
	// Target.SetBase().
	Sets [][]gpucore.BindGroupLayoutEntry
}

// Key is the canonical, comparable form of a Spec.
type Key string

// Key returns the canonical key of s. Empty entry points are normalized to
// their defaults so both spellings share one pipeline.
func (s Spec) Key() Key {
	var buf bytes.Buffer
	s.encode(&buf)
	return Key(buf.String())
}

// Hash returns the 64-bit murmur3 digest of the canonical key, for labels
// and logs.
func (s Spec) Hash() uint64 {
	h := murmur3.New64()
	s.encode(h)
	return h.Sum64()
}

func (s Spec) entries() (vs, fs string) {
	vs, fs = s.VertexEntry, s.FragmentEntry
	if vs == "" {
		vs = DefaultVertexEntry
	}
	if fs == "" {
		fs = DefaultFragmentEntry
	}
	return vs, fs
}

func (s Spec) encode(w io.Writer) {
	vsEntry, fsEntry := s.entries()
	writeString(w, s.VertexShader)
	writeString(w, vsEntry)
	writeString(w, s.FragmentShader)
	writeString(w, fsEntry)

	//nolint:gosec // G115: vertex buffer count is bounded by GPU limits (< 16)
	writeUint32(w, uint32(len(s.VertexLayout)))
	for i := range s.VertexLayout {
		layout := &s.VertexLayout[i]
		writeUint64(w, uint64(layout.ArrayStride))
		writeUint32(w, uint32(layout.StepMode))
		//nolint:gosec // G115: attribute count is bounded by GPU limits (< 32)
		writeUint32(w, uint32(len(layout.Attributes)))
		for j := range layout.Attributes {
			attr := &layout.Attributes[j]
			writeUint32(w, uint32(attr.ShaderLocation))
			writeUint32(w, uint32(attr.Format))
			writeUint64(w, uint64(attr.Offset))
		}
	}

	writeUint32(w, uint32(s.Topology))
	writeBool(w, s.DepthRead)
	writeBool(w, s.DepthWrite)

	s.Target.encode(w)

	writeUint32(w, uint32(len(s.Sets)))
	for _, set := range s.Sets {
		writeLayout(w, set)
	}
}

// Key returns the canonical key of the target. Targets with equal keys
// accept the same pipelines.
func (t TargetFormat) Key() string {
	var buf bytes.Buffer
	t.encode(&buf)
	return buf.String()
}

func (t TargetFormat) encode(w io.Writer) {
	writeString(w, t.Name)
	writeUint32(w, uint32(len(t.ColorFormats)))
	for _, f := range t.ColorFormats {
		writeUint32(w, uint32(f))
	}
	writeUint32(w, uint32(t.DepthFormat))
	writeLayout(w, t.Inputs)
}

// LayoutKey returns the canonical key of a bind group layout shape.
func LayoutKey(entries []gpucore.BindGroupLayoutEntry) string {
	var buf bytes.Buffer
	writeLayout(&buf, entries)
	return buf.String()
}

func writeLayout(w io.Writer, entries []gpucore.BindGroupLayoutEntry) {
	writeUint32(w, uint32(len(entries)))
	for _, e := range entries {
		writeUint32(w, e.Binding)
		writeUint32(w, uint32(e.Kind))
		writeUint32(w, uint32(e.Visibility))
	}
}

func writeUint32(w io.Writer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = w.Write(buf[:])
}

func writeUint64(w io.Writer, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = w.Write(buf[:])
}

//nolint:gosec // G115: shader paths and pass names are short
func writeString(w io.Writer, s string) {
	writeUint32(w, uint32(len(s)))
	_, _ = w.Write([]byte(s))
}

func writeBool(w io.Writer, v bool) {
	if v {
		_, _ = w.Write([]byte{1})
	} else {
		_, _ = w.Write([]byte{0})
	}
}
