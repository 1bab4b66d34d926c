package mesh

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/fakegpu"
)

func TestShapesCounts(t *testing.T) {
	tests := []struct {
		name     string
		m        *Mesh
		vertices uint32
		count    uint32
		indexed  bool
	}{
		{"quad", FullscreenQuad(), 4, 6, true},
		{"triangle", FullscreenTriangle(), 3, 3, false},
		{"box", Box(1, 2, 3), 24, 36, true},
		{"plane", Plane(10, -1), 4, 6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.m.VertexCount != tt.vertices {
				t.Errorf("VertexCount = %d, want %d", tt.m.VertexCount, tt.vertices)
			}
			if got := tt.m.Count(); got != tt.count {
				t.Errorf("Count = %d, want %d", got, tt.count)
			}
			if tt.m.Indexed() != tt.indexed {
				t.Errorf("Indexed = %v", tt.m.Indexed())
			}
			for _, i := range tt.m.Indices {
				if i >= tt.m.VertexCount {
					t.Fatalf("index %d out of range", i)
				}
			}
		})
	}
}

func TestUploadOnce(t *testing.T) {
	dev := fakegpu.New()
	m := Box(1, 1, 1)
	if err := m.Upload(dev); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := m.Upload(dev); err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if n := dev.Count("buffer"); n != 2 {
		t.Errorf("buffers = %d, want 2", n)
	}

	vbuf, ibuf, format := m.Buffers()
	if vbuf == gpucore.InvalidID || ibuf == gpucore.InvalidID {
		t.Fatalf("buffers = %d, %d", vbuf, ibuf)
	}
	if format != gputypes.IndexFormatUint16 {
		t.Errorf("index format = %v, want uint16", format)
	}
	if got := dev.Buffers[ibuf].Size; got != 72 {
		t.Errorf("index buffer size = %d, want 72", got)
	}

	m.Release()
	if n := dev.LiveCount("buffer"); n != 0 {
		t.Errorf("live buffers after Release = %d", n)
	}
}

func TestUploadNonIndexed(t *testing.T) {
	dev := fakegpu.New()
	m := FullscreenTriangle()
	if err := m.Upload(dev); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, ibuf, _ := m.Buffers(); ibuf != gpucore.InvalidID {
		t.Errorf("index buffer = %d, want none", ibuf)
	}
}

func TestUploadErrors(t *testing.T) {
	empty := New("empty", Position2DLayout(), nil, nil)
	if err := empty.Upload(fakegpu.New()); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty mesh error = %v, want ErrEmpty", err)
	}

	dev := fakegpu.New()
	dev.Fail["write"] = true
	if err := FullscreenQuad().Upload(dev); !errors.Is(err, fakegpu.ErrInjected) {
		t.Errorf("write failure error = %v", err)
	}
	if n := dev.LiveCount("buffer"); n != 0 {
		t.Errorf("failed upload leaked %d buffers", n)
	}
}

func TestEncodeIndicesWidens(t *testing.T) {
	data, format := encodeIndices([]uint32{0, 70000})
	if format != gputypes.IndexFormatUint32 || len(data) != 8 {
		t.Errorf("format = %v, len = %d", format, len(data))
	}
	data, format = encodeIndices([]uint32{0, 1, 2})
	if format != gputypes.IndexFormatUint16 || len(data) != 6 {
		t.Errorf("format = %v, len = %d", format, len(data))
	}
}

func TestFloat32Bytes(t *testing.T) {
	b := Float32Bytes([]float32{1})
	want := []byte{0x00, 0x00, 0x80, 0x3f}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("Float32Bytes(1) = %x, want %x", b, want)
		}
	}
}
