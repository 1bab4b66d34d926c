package object

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/binding"
	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/logging"
)

// Errors returned by set operations.
var (
	// ErrNotBuffer is returned when uploading into a texture or sampler
	// entry.
	ErrNotBuffer = errors.New("object: entry is not a buffer")

	// ErrEntryRange is returned for an entry index outside the set.
	ErrEntryRange = errors.New("object: entry index out of range")

	// ErrEmptyEntry is returned for an entry with nothing to bind.
	ErrEmptyEntry = errors.New("object: entry binds nothing")
)

// VertexAndFragment is the default visibility of set entries.
const VertexAndFragment = gputypes.ShaderStageVertex | gputypes.ShaderStageFragment

// Entry is one binding of a set. Exactly one of Data, Texture or Sampler
// is set.
type Entry struct {
	// Data is the initial content of a buffer owned by the set.
	Data []byte
	// Storage binds Data as a read-only storage buffer instead of a
	// uniform buffer.
	Storage bool

	Texture gpucore.TextureID
	// Depth marks Texture as a depth texture.
	Depth bool

	Sampler gpucore.SamplerID
	// NonFiltering marks Sampler for use with depth textures.
	NonFiltering bool

	// Visibility defaults to VertexAndFragment.
	Visibility gputypes.ShaderStage
}

// Uniform returns a uniform buffer entry.
func Uniform(data []byte) Entry { return Entry{Data: data} }

// Storage returns a read-only storage buffer entry.
func Storage(data []byte) Entry { return Entry{Data: data, Storage: true} }

// Texture returns a sampled texture entry.
func Texture(id gpucore.TextureID) Entry { return Entry{Texture: id} }

// DepthTexture returns a sampled depth texture entry.
func DepthTexture(id gpucore.TextureID) Entry { return Entry{Texture: id, Depth: true} }

// Sampler returns a filtering sampler entry.
func Sampler(id gpucore.SamplerID) Entry { return Entry{Sampler: id} }

// NonFilteringSampler returns a sampler entry usable with depth textures.
func NonFilteringSampler(id gpucore.SamplerID) Entry {
	return Entry{Sampler: id, NonFiltering: true}
}

func (e *Entry) layout(binding uint32) (gpucore.BindGroupLayoutEntry, error) {
	vis := e.Visibility
	if vis == 0 {
		vis = VertexAndFragment
	}
	le := gpucore.BindGroupLayoutEntry{Binding: binding, Visibility: vis}
	switch {
	case e.Data != nil && e.Storage:
		le.Kind = gpucore.BindingStorageBuffer
	case e.Data != nil:
		le.Kind = gpucore.BindingUniformBuffer
	case e.Texture != gpucore.InvalidID && e.Depth:
		le.Kind = gpucore.BindingDepthTexture
	case e.Texture != gpucore.InvalidID:
		le.Kind = gpucore.BindingTexture
	case e.Sampler != gpucore.InvalidID && e.NonFiltering:
		le.Kind = gpucore.BindingNonFilteringSampler
	case e.Sampler != gpucore.InvalidID:
		le.Kind = gpucore.BindingSampler
	default:
		return le, fmt.Errorf("binding %d: %w", binding, ErrEmptyEntry)
	}
	return le, nil
}

// SetData describes one binding set. Entry i binds at binding i.
type SetData struct {
	Label   string
	Entries []Entry
}

// Set is a built binding set: its layout, its resources and the buffers it
// owns.
//
// By default the bind group is resolved through the binding cache at draw
// time, keyed on the current resources. A set built directly carries its
// own bind group instead.
type Set struct {
	label    string
	dev      gpucore.Device
	bindings *binding.Cache
	shape    []gpucore.BindGroupLayoutEntry
	layout   gpucore.BindGroupLayoutID
	entries  []gpucore.BindGroupEntry
	owned    []bool // entries whose buffer the set allocated

	direct bool
	group  gpucore.BindGroupID

	// retired buffers and the cached groups evicted with them
	retired       []gpucore.BufferID
	retiredGroups []gpucore.BindGroupID
}

// NewSet builds a set whose bind group is resolved through the binding
// cache.
func NewSet(ctx BuildContext, data SetData) (*Set, error) {
	return newSet(ctx, data, false)
}

// NewDirectSet builds a set and its bind group immediately, bypassing the
// binding cache. The set owns the group; Release destroys it.
func NewDirectSet(ctx BuildContext, data SetData) (*Set, error) {
	return newSet(ctx, data, true)
}

func newSet(ctx BuildContext, data SetData, direct bool) (*Set, error) {
	s := &Set{
		label:    data.Label,
		dev:      ctx.Device,
		bindings: ctx.Bindings,
		shape:    make([]gpucore.BindGroupLayoutEntry, len(data.Entries)),
		entries:  make([]gpucore.BindGroupEntry, len(data.Entries)),
		owned:    make([]bool, len(data.Entries)),
		direct:   direct,
	}
	for i := range data.Entries {
		e := &data.Entries[i]
		//nolint:gosec // G115: binding counts are bounded by GPU limits
		binding := uint32(i)
		le, err := e.layout(binding)
		if err != nil {
			s.Release()
			return nil, fmt.Errorf("set %q: %w", data.Label, err)
		}
		s.shape[i] = le
		s.entries[i].Binding = binding

		switch {
		case e.Data != nil:
			buf, err := s.allocate(le.Kind, e.Data)
			if err != nil {
				s.Release()
				return nil, fmt.Errorf("set %q: binding %d: %w", data.Label, i, err)
			}
			s.entries[i].Resource = gpucore.BufferRef(buf)
			s.owned[i] = true
		case e.Texture != gpucore.InvalidID:
			s.entries[i].Resource = gpucore.TextureRef(e.Texture)
		default:
			s.entries[i].Resource = gpucore.SamplerRef(e.Sampler)
		}
	}

	layout, err := ctx.Pipelines.Layout(s.shape)
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("set %q: %w", data.Label, err)
	}
	s.layout = layout

	if direct {
		if err := s.buildGroup(); err != nil {
			s.Release()
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) allocate(kind gpucore.BindingKind, data []byte) (gpucore.BufferID, error) {
	usage := gputypes.BufferUsageUniform
	if kind == gpucore.BindingStorageBuffer {
		usage = gputypes.BufferUsageStorage
	}
	buf, err := s.dev.CreateBuffer(&gpucore.BufferDesc{
		Label: s.label,
		Size:  (uint64(len(data)) + 15) &^ 15,
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := s.dev.WriteBuffer(buf, 0, data); err != nil {
		s.dev.DestroyBuffer(buf)
		return gpucore.InvalidID, err
	}
	return buf, nil
}

func (s *Set) buildGroup() error {
	group, err := s.dev.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   s.label,
		Layout:  s.layout,
		Entries: append([]gpucore.BindGroupEntry(nil), s.entries...),
	})
	if err != nil {
		return fmt.Errorf("set %q: bind group: %w", s.label, err)
	}
	s.group = group
	return nil
}

// Shape returns the layout shape of the set.
func (s *Set) Shape() []gpucore.BindGroupLayoutEntry { return s.shape }

// Layout returns the shared bind group layout of the set.
func (s *Set) Layout() gpucore.BindGroupLayoutID { return s.layout }

// Entries returns the currently bound resources.
func (s *Set) Entries() []gpucore.BindGroupEntry {
	return append([]gpucore.BindGroupEntry(nil), s.entries...)
}

// Direct reports whether the set carries its own bind group.
func (s *Set) Direct() bool { return s.direct }

// Buffer returns the buffer bound at entry i.
func (s *Set) Buffer(i int) (gpucore.BufferID, error) {
	if i < 0 || i >= len(s.entries) {
		return gpucore.InvalidID, ErrEntryRange
	}
	if s.entries[i].Resource.Kind != gpucore.ResourceBuffer {
		return gpucore.InvalidID, ErrNotBuffer
	}
	return gpucore.BufferID(s.entries[i].Resource.ID), nil
}

// Upload writes data into the buffer bound at entry i. The buffer keeps
// its identity, so the set's bind group stays valid and no new one is
// built. The caller must not upload while a submission reading the buffer
// is in flight.
func (s *Set) Upload(i int, data []byte) error {
	buf, err := s.Buffer(i)
	if err != nil {
		return fmt.Errorf("set %q: upload %d: %w", s.label, i, err)
	}
	if err := s.dev.WriteBuffer(buf, 0, data); err != nil {
		return fmt.Errorf("set %q: upload %d: %w", s.label, i, err)
	}
	return nil
}

// Reallocate replaces the buffer at entry i with a new one holding data.
// The new buffer has a new identity: a cached set resolves a new bind
// group on its next draw and a direct set rebuilds its group now. Cached
// groups binding the old buffer leave the binding cache now. The old
// buffer and those groups are destroyed on the following Reallocate or
// Release, after the frame that may still read them.
func (s *Set) Reallocate(i int, data []byte) error {
	old, err := s.Buffer(i)
	if err != nil {
		return fmt.Errorf("set %q: reallocate %d: %w", s.label, i, err)
	}
	buf, err := s.allocate(s.shape[i].Kind, data)
	if err != nil {
		return fmt.Errorf("set %q: reallocate %d: %w", s.label, i, err)
	}

	s.destroyRetired()
	if s.owned[i] {
		s.retired = append(s.retired, old)
		s.retiredGroups = append(s.retiredGroups, s.evict(old)...)
	}
	s.entries[i].Resource = gpucore.BufferRef(buf)
	s.owned[i] = true

	if s.direct {
		prev := s.group
		if err := s.buildGroup(); err != nil {
			return err
		}
		s.dev.DestroyBindGroup(prev)
	}
	logging.L().Debug("object: set reallocated", "set", s.label, "entry", i, "buffer", buf)
	return nil
}

// evict removes the cached groups binding buf and returns them.
func (s *Set) evict(buf gpucore.BufferID) []gpucore.BindGroupID {
	if s.bindings == nil {
		return nil
	}
	return s.bindings.Evict(gpucore.BufferRef(buf))
}

func (s *Set) destroyRetired() {
	for _, g := range s.retiredGroups {
		s.dev.DestroyBindGroup(g)
	}
	s.retiredGroups = s.retiredGroups[:0]
	for _, b := range s.retired {
		s.dev.DestroyBuffer(b)
	}
	s.retired = s.retired[:0]
}

// Release destroys the buffers the set owns, the cached bind groups that
// bind them and its direct bind group.
func (s *Set) Release() {
	if s.group != gpucore.InvalidID {
		s.dev.DestroyBindGroup(s.group)
		s.group = gpucore.InvalidID
	}
	for i, e := range s.entries {
		if s.owned[i] && e.Resource.ID != 0 {
			buf := gpucore.BufferID(e.Resource.ID)
			s.retiredGroups = append(s.retiredGroups, s.evict(buf)...)
			s.dev.DestroyBuffer(buf)
			s.owned[i] = false
		}
	}
	s.destroyRetired()
}

// resolve returns the bind group to draw the set with.
func (s *Set) resolve(rec *Recorder) (gpucore.BindGroupID, error) {
	if s.direct {
		return s.group, nil
	}
	id, err := rec.Bindings.GetOrBuild(s.layout, s.entries)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("set %q: %w", s.label, err)
	}
	return id, nil
}
