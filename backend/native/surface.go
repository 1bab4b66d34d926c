// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"image"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// OffscreenSurface is a gpucore.Surface backed by a device texture. It
// stands in for a window: Resize changes its size the way a window resize
// would, and Snapshot reads the last presented frame back.
type OffscreenSurface struct {
	dev    *Device
	format gputypes.TextureFormat
	width  uint32
	height uint32
	tex    gpucore.TextureID

	presented int
}

// NewOffscreenSurface creates an offscreen surface. The backing texture is
// allocated on the first Acquire.
func NewOffscreenSurface(dev *Device, width, height uint32, format gputypes.TextureFormat) (*OffscreenSurface, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("offscreen surface %dx%d: %w", width, height, ErrInvalidDimensions)
	}
	return &OffscreenSurface{dev: dev, format: format, width: width, height: height}, nil
}

// Size returns the surface dimensions.
func (s *OffscreenSurface) Size() (uint32, uint32) { return s.width, s.height }

// Format returns the surface texture format.
func (s *OffscreenSurface) Format() gputypes.TextureFormat { return s.format }

// Acquire returns the surface texture, allocating it if needed.
func (s *OffscreenSurface) Acquire() (gpucore.TextureID, error) {
	if s.tex != gpucore.InvalidID {
		return s.tex, nil
	}
	tex, err := s.dev.CreateTexture(&gpucore.TextureDesc{
		Label:  "offscreen_surface",
		Width:  s.width,
		Height: s.height,
		Format: s.format,
		Usage:  gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("acquire offscreen surface: %w", err)
	}
	s.tex = tex
	return tex, nil
}

// Present records that a frame was completed.
func (s *OffscreenSurface) Present() error {
	s.presented++
	return nil
}

// Presented returns the number of presented frames.
func (s *OffscreenSurface) Presented() int { return s.presented }

// Resize changes the surface size. The backing texture is recreated on the
// next Acquire.
func (s *OffscreenSurface) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("resize offscreen surface %dx%d: %w", width, height, ErrInvalidDimensions)
	}
	if width == s.width && height == s.height {
		return nil
	}
	s.release()
	s.width, s.height = width, height
	return nil
}

// Snapshot reads the surface texture back as an RGBA image.
func (s *OffscreenSurface) Snapshot() (*image.RGBA, error) {
	if s.tex == gpucore.InvalidID {
		return nil, fmt.Errorf("snapshot: nothing rendered yet")
	}
	data, err := s.dev.ReadTexture(s.tex)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(s.width), int(s.height)))
	copy(img.Pix, data)
	if s.format == gputypes.TextureFormatBGRA8Unorm {
		swapRedBlue(img.Pix)
	}
	return img, nil
}

// Close releases the backing texture.
func (s *OffscreenSurface) Close() {
	s.release()
}

func (s *OffscreenSurface) release() {
	if s.tex != gpucore.InvalidID {
		s.dev.DestroyTexture(s.tex)
		s.tex = gpucore.InvalidID
	}
}

// swapRedBlue converts BGRA pixels to RGBA in place.
func swapRedBlue(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// ViewSurface presents into texture views owned by a host window. The host
// calls SetTarget with the current surface view before each frame, the
// way gogpu hands out its surface view.
type ViewSurface struct {
	dev     *Device
	format  gputypes.TextureFormat
	view    hal.TextureView
	width   uint32
	height  uint32
	current gpucore.TextureID

	// OnPresent, if set, is called by Present after submission.
	OnPresent func() error
}

// NewViewSurface creates a surface for host-provided views of the given
// format.
func NewViewSurface(dev *Device, format gputypes.TextureFormat) *ViewSurface {
	return &ViewSurface{dev: dev, format: format}
}

// SetTarget sets the view and size for the next frame.
func (s *ViewSurface) SetTarget(view hal.TextureView, width, height uint32) {
	s.view = view
	s.width, s.height = width, height
}

// Size returns the size of the current target.
func (s *ViewSurface) Size() (uint32, uint32) { return s.width, s.height }

// Format returns the surface format.
func (s *ViewSurface) Format() gputypes.TextureFormat { return s.format }

// Acquire imports the current view.
func (s *ViewSurface) Acquire() (gpucore.TextureID, error) {
	if s.view == nil {
		return gpucore.InvalidID, fmt.Errorf("view surface: no target set")
	}
	s.forget()
	id, err := s.dev.ImportView(s.view, s.width, s.height, s.format)
	if err != nil {
		return gpucore.InvalidID, err
	}
	s.current = id
	return id, nil
}

// Present forgets the imported view and calls OnPresent.
func (s *ViewSurface) Present() error {
	s.forget()
	if s.OnPresent != nil {
		return s.OnPresent()
	}
	return nil
}

func (s *ViewSurface) forget() {
	if s.current != gpucore.InvalidID {
		s.dev.ForgetView(s.current)
		s.current = gpucore.InvalidID
	}
}
