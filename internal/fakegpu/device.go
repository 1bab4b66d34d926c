// Package fakegpu provides a recording gpucore.Device for tests.
//
// Every create call is counted and every recorded command is kept as text,
// so tests can assert build counts and draw sequences without a GPU.
package fakegpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/gputypes"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("fakegpu: injected failure")

// RecordedPass is one render pass of a submission.
type RecordedPass struct {
	Desc gpucore.RenderPassDesc
	Cmds []string
}

// Device is a recording gpucore.Device.
type Device struct {
	mu     sync.Mutex
	nextID uint64

	// Counts of successful Create* calls, by kind.
	Creates map[string]int

	Buffers   map[gpucore.BufferID]gpucore.BufferDesc
	Textures  map[gpucore.TextureID]gpucore.TextureDesc
	Pipelines map[gpucore.RenderPipelineID]gpucore.RenderPipelineDesc
	Groups    map[gpucore.BindGroupID]gpucore.BindGroupDesc
	Live      map[uint64]string

	// BufferData holds the last bytes written per buffer.
	BufferData map[gpucore.BufferID][]byte

	// Fail makes the named create kind ("pipeline", "bindgroup", ...)
	// return ErrInjected.
	Fail map[string]bool

	Submissions [][]RecordedPass
}

// New creates an empty fake device.
func New() *Device {
	return &Device{
		Creates:    make(map[string]int),
		Buffers:    make(map[gpucore.BufferID]gpucore.BufferDesc),
		Textures:   make(map[gpucore.TextureID]gpucore.TextureDesc),
		Pipelines:  make(map[gpucore.RenderPipelineID]gpucore.RenderPipelineDesc),
		Groups:     make(map[gpucore.BindGroupID]gpucore.BindGroupDesc),
		Live:       make(map[uint64]string),
		BufferData: make(map[gpucore.BufferID][]byte),
		Fail:       make(map[string]bool),
	}
}

// create allocates an ID for kind, or fails if kind is marked to fail.
func (d *Device) create(kind string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail[kind] {
		return 0, fmt.Errorf("create %s: %w", kind, ErrInjected)
	}
	d.nextID++
	d.Creates[kind]++
	d.Live[d.nextID] = kind
	return d.nextID, nil
}

func (d *Device) destroy(id uint64) {
	d.mu.Lock()
	delete(d.Live, id)
	d.mu.Unlock()
}

// Count returns the number of successful creates of kind.
func (d *Device) Count(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Creates[kind]
}

// LiveCount returns the number of live resources of kind.
func (d *Device) LiveCount(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.Live {
		if k == kind {
			n++
		}
	}
	return n
}

// LastSubmission returns the passes of the most recent submission.
func (d *Device) LastSubmission() []RecordedPass {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Submissions) == 0 {
		return nil
	}
	return d.Submissions[len(d.Submissions)-1]
}

func (d *Device) CreateShaderModule(desc *gpucore.ShaderModuleDesc) (gpucore.ShaderModuleID, error) {
	id, err := d.create("shader")
	return gpucore.ShaderModuleID(id), err
}

func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) { d.destroy(uint64(id)) }

func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	id, err := d.create("buffer")
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.Lock()
	d.Buffers[gpucore.BufferID(id)] = *desc
	d.mu.Unlock()
	return gpucore.BufferID(id), nil
}

func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail["write"] {
		return fmt.Errorf("write buffer: %w", ErrInjected)
	}
	desc, ok := d.Buffers[id]
	if !ok {
		return fmt.Errorf("write buffer %d: unknown", id)
	}
	if offset+uint64(len(data)) > desc.Size {
		return fmt.Errorf("write buffer %d: out of bounds", id)
	}
	buf := d.BufferData[id]
	if uint64(len(buf)) < desc.Size {
		buf = append(buf, make([]byte, desc.Size-uint64(len(buf)))...)
	}
	copy(buf[offset:], data)
	d.BufferData[id] = buf
	return nil
}

func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	delete(d.Buffers, id)
	d.mu.Unlock()
	d.destroy(uint64(id))
}

func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("create texture %q: zero size", desc.Label)
	}
	id, err := d.create("texture")
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.Lock()
	d.Textures[gpucore.TextureID(id)] = *desc
	d.mu.Unlock()
	return gpucore.TextureID(id), nil
}

func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.Textures[id]; !ok {
		return fmt.Errorf("write texture %d: unknown", id)
	}
	return nil
}

func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	delete(d.Textures, id)
	d.mu.Unlock()
	d.destroy(uint64(id))
}

func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	id, err := d.create("sampler")
	return gpucore.SamplerID(id), err
}

func (d *Device) DestroySampler(id gpucore.SamplerID) { d.destroy(uint64(id)) }

func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	id, err := d.create("layout")
	return gpucore.BindGroupLayoutID(id), err
}

func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) { d.destroy(uint64(id)) }

func (d *Device) CreatePipelineLayout(desc *gpucore.PipelineLayoutDesc) (gpucore.PipelineLayoutID, error) {
	id, err := d.create("pipelinelayout")
	return gpucore.PipelineLayoutID(id), err
}

func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) { d.destroy(uint64(id)) }

func (d *Device) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	id, err := d.create("pipeline")
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.Lock()
	d.Pipelines[gpucore.RenderPipelineID(id)] = *desc
	d.mu.Unlock()
	return gpucore.RenderPipelineID(id), nil
}

func (d *Device) DestroyRenderPipeline(id gpucore.RenderPipelineID) { d.destroy(uint64(id)) }

func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	id, err := d.create("bindgroup")
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.Lock()
	d.Groups[gpucore.BindGroupID(id)] = *desc
	d.mu.Unlock()
	return gpucore.BindGroupID(id), nil
}

func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) { d.destroy(uint64(id)) }

func (d *Device) BeginCommands(label string) (gpucore.CommandEncoder, error) {
	if _, err := d.create("encoder"); err != nil {
		return nil, err
	}
	return &encoder{d: d}, nil
}

type encoder struct {
	d      *Device
	passes []RecordedPass
	done   bool
}

func (e *encoder) BeginRenderPass(desc *gpucore.RenderPassDesc) (gpucore.RenderPassEncoder, error) {
	if e.done {
		return nil, errors.New("fakegpu: encoder finished")
	}
	e.passes = append(e.passes, RecordedPass{Desc: *desc})
	return &pass{enc: e, idx: len(e.passes) - 1}, nil
}

func (e *encoder) Submit() error {
	if e.done {
		return errors.New("fakegpu: encoder finished")
	}
	e.done = true
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if e.d.Fail["submit"] {
		return fmt.Errorf("submit: %w", ErrInjected)
	}
	e.d.Submissions = append(e.d.Submissions, e.passes)
	return nil
}

func (e *encoder) Discard() { e.done = true }

// pass appends commands to its RecordedPass by index, since the encoder's
// slice may grow while the pass is open.
type pass struct {
	enc *encoder
	idx int
}

func (p *pass) add(format string, args ...any) {
	r := &p.enc.passes[p.idx]
	r.Cmds = append(r.Cmds, fmt.Sprintf(format, args...))
}

func (p *pass) SetPipeline(id gpucore.RenderPipelineID) { p.add("pipeline %d", id) }
func (p *pass) SetBindGroup(index uint32, id gpucore.BindGroupID) {
	p.add("bindgroup %d %d", index, id)
}
func (p *pass) SetVertexBuffer(slot uint32, id gpucore.BufferID, offset uint64) {
	p.add("vertex %d %d", slot, id)
}
func (p *pass) SetIndexBuffer(id gpucore.BufferID, format gputypes.IndexFormat, offset uint64) {
	p.add("index %d", id)
}
func (p *pass) SetViewport(v gpucore.Viewport) {
	p.add("viewport %g %g %g %g", v.X, v.Y, v.Width, v.Height)
}
func (p *pass) SetScissorRect(s gpucore.Scissor) {
	p.add("scissor %d %d %d %d", s.X, s.Y, s.Width, s.Height)
}
func (p *pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.add("draw %d", vertexCount)
}
func (p *pass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.add("drawindexed %d", indexCount)
}
func (p *pass) End() { p.add("end") }

// Surface is a fake gpucore.Surface whose size tests can change.
type Surface struct {
	Dev           *Device
	Width, Height uint32
	Fmt           gputypes.TextureFormat
	Presents      int
	tex           gpucore.TextureID
	texW, texH    uint32
}

// NewSurface creates a fake surface on dev.
func NewSurface(dev *Device, width, height uint32) *Surface {
	return &Surface{Dev: dev, Width: width, Height: height, Fmt: gputypes.TextureFormatBGRA8Unorm}
}

func (s *Surface) Size() (uint32, uint32)         { return s.Width, s.Height }
func (s *Surface) Format() gputypes.TextureFormat { return s.Fmt }

func (s *Surface) Acquire() (gpucore.TextureID, error) {
	if s.tex != gpucore.InvalidID && s.texW == s.Width && s.texH == s.Height {
		return s.tex, nil
	}
	if s.tex != gpucore.InvalidID {
		s.Dev.DestroyTexture(s.tex)
	}
	id, err := s.Dev.CreateTexture(&gpucore.TextureDesc{
		Label: "surface", Width: s.Width, Height: s.Height, Format: s.Fmt,
		Usage: gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return gpucore.InvalidID, err
	}
	s.tex, s.texW, s.texH = id, s.Width, s.Height
	return id, nil
}

func (s *Surface) Present() error {
	s.Presents++
	return nil
}
