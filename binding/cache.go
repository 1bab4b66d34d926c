// Package binding deduplicates bind groups by resource identity.
//
// A bind group ties concrete resources to a layout slot by slot. [Cache]
// keys each group on the layout and the ordered list of bound resource
// identities, so every draw object that binds the same buffers through the
// same layout shares one group.
//
// The cache tracks identity, not content. Writing new bytes into a bound
// buffer keeps its group valid and costs nothing here. Replacing the
// buffer with a new allocation changes the key, and the next lookup builds
// a new group. Callers pick between the two: in-place writes are cheap but
// must not race an in-flight submission, reallocation is always safe but
// pays for a new buffer and a new group.
package binding

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/internal/cache"
	"github.com/gogpu/framegraph/internal/logging"
)

// Key identifies a bind group by layout and ordered resources.
type Key struct {
	Layout    gpucore.BindGroupLayoutID
	Resources string // canonical encoding of the ordered entries
}

// KeyOf returns the key for a layout and ordered entries.
func KeyOf(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) Key {
	var buf bytes.Buffer
	var scratch [8]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint32(scratch[:4], e.Binding)
		buf.Write(scratch[:4])
		buf.WriteByte(byte(e.Resource.Kind))
		binary.LittleEndian.PutUint64(scratch[:], e.Resource.ID)
		buf.Write(scratch[:])
		binary.LittleEndian.PutUint64(scratch[:], e.Size)
		buf.Write(scratch[:])
	}
	return Key{Layout: layout, Resources: buf.String()}
}

type entry struct {
	id   gpucore.BindGroupID
	refs []gpucore.ResourceRef
}

// Cache caches bind groups by Key.
//
// Cache is safe for concurrent use.
type Cache struct {
	dev    gpucore.Device
	groups *cache.Store[Key, entry]
}

// NewCache creates an empty cache.
func NewCache(dev gpucore.Device) *Cache {
	return &Cache{
		dev:    dev,
		groups: cache.NewStore[Key, entry](),
	}
}

// GetOrBuild returns the bind group for layout and entries, building it
// on first request. A failed build is not cached.
func (c *Cache) GetOrBuild(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	key := KeyOf(layout, entries)
	e, built, err := c.groups.GetOrBuild(key, func() (entry, error) {
		id, err := c.dev.CreateBindGroup(&gpucore.BindGroupDesc{
			Label:   fmt.Sprintf("bindgroup_l%d_n%d", layout, len(entries)),
			Layout:  layout,
			Entries: append([]gpucore.BindGroupEntry(nil), entries...),
		})
		if err != nil {
			return entry{}, err
		}
		refs := make([]gpucore.ResourceRef, len(entries))
		for i := range entries {
			refs[i] = entries[i].Resource
		}
		return entry{id: id, refs: refs}, nil
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("bind group: %w", err)
	}
	if built {
		logging.L().Debug("binding: built", "layout", layout, "entries", len(entries), "id", e.id)
	}
	return e.id, nil
}

// Lookup returns the cached group without building.
func (c *Cache) Lookup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, bool) {
	e, ok := c.groups.Get(KeyOf(layout, entries))
	return e.id, ok
}

// Evict drops every group that binds one of refs and returns the dropped
// groups without destroying them. The caller destroys them once no
// submission can still use them. Eviction is for resources that are going
// away, such as images rebuilt on resize; a dropped key is built again if
// requested.
func (c *Cache) Evict(refs ...gpucore.ResourceRef) []gpucore.BindGroupID {
	gone := make(map[gpucore.ResourceRef]bool, len(refs))
	for _, r := range refs {
		gone[r] = true
	}
	removed := c.groups.DeleteFunc(func(_ Key, e entry) bool {
		for _, r := range e.refs {
			if gone[r] {
				return true
			}
		}
		return false
	})
	ids := make([]gpucore.BindGroupID, len(removed))
	for i, e := range removed {
		ids[i] = e.id
	}
	return ids
}

// Stats contains cache statistics.
type Stats struct {
	Hits   uint64
	Misses uint64
	// Groups is the number of cached bind groups.
	Groups int
}

// Stats returns lookup statistics. Diagnostic only.
func (c *Cache) Stats() Stats {
	st := c.groups.Stats()
	return Stats{Hits: st.Hits, Misses: st.Misses, Groups: st.Len}
}

// Close destroys every cached bind group.
func (c *Cache) Close() {
	c.groups.Range(func(_ Key, e entry) {
		c.dev.DestroyBindGroup(e.id)
	})
	c.groups.Clear()
}
