package graph

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gpucore"
)

// Sizing is the sizing mode of an image.
type Sizing uint8

// Sizing modes. Every image declares one.
const (
	// SizeFixed images keep their declared size for the life of the graph.
	SizeFixed Sizing = iota + 1

	// SizeWindowRelative images follow the presentation surface and are
	// rebuilt on every resize.
	SizeWindowRelative
)

// String returns the config name of the mode.
func (s Sizing) String() string {
	switch s {
	case SizeFixed:
		return "fixed"
	case SizeWindowRelative:
		return "window"
	default:
		return "unset"
	}
}

// ImageSpec declares an image a pass produces.
type ImageSpec struct {
	Tag    string
	Format gputypes.TextureFormat
	Sizing Sizing

	// Width and Height are required for fixed images and ignored for
	// window-relative ones.
	Width, Height uint32
}

// Clear holds a pass's attachment clear values.
type Clear struct {
	// Color clears every color attachment. Nil uses the graph default.
	Color *gputypes.Color

	// Depth clears the depth attachment. Nil clears to 1.
	Depth *float32
}

// Pass is one stage of the graph.
//
// Every image in Creates is an attachment of the pass: color formats
// become color attachments in declared order and a depth format becomes
// the depth attachment. Needs lists tags sampled by the pass; they are
// bound as the pass inputs at bind group 0, a sampler at binding 0 and
// the images in order from binding 1.
type Pass struct {
	Name    string
	Creates []ImageSpec
	Needs   []string
	Clear   Clear
}

// Image is an image in the tag registry.
type Image struct {
	Texture gpucore.TextureID
	Format  gputypes.TextureFormat
	Width   uint32
	Height  uint32
	Sizing  Sizing

	// Fixed marks images supplied by the caller. The graph never creates,
	// resizes or destroys them.
	Fixed bool
}
