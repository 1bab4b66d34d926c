// Package asset loads images from disk into graph-ready textures.
//
// PNG, JPEG and GIF decode through the standard library. BMP, TIFF and
// WebP are registered from golang.org/x/image. Decoded images are
// converted to RGBA8 and optionally downscaled before upload:
//
//	img, err := asset.LoadTexture(dev, os.DirFS("assets"), "floor.png", asset.WithMaxSize(2048))
//	fixed := map[string]graph.Image{"floor": img}
package asset

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/gputypes"
	"github.com/h2non/filetype"

	"github.com/gogpu/framegraph/gpucore"
	"github.com/gogpu/framegraph/graph"
)

// Errors.
var (
	// ErrEmptyImage is returned for images with no pixels.
	ErrEmptyImage = errors.New("asset: empty image")

	// ErrUnsupportedFormat is returned for files that are not images.
	ErrUnsupportedFormat = errors.New("asset: unsupported format")
)

// Option configures LoadTexture.
type Option func(*options)

type options struct {
	maxSize int
	label   string
}

// WithMaxSize downscales images whose larger side exceeds n pixels,
// keeping the aspect ratio.
func WithMaxSize(n int) Option {
	return func(o *options) { o.maxSize = n }
}

// WithLabel sets the texture label. The default is the file path.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// Decode decodes any registered format into RGBA8.
func Decode(r io.Reader) (*image.RGBA, string, error) {
	img, format, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, "", fmt.Errorf("asset: decode: %w", err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, format, ErrEmptyImage
	}
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba, format, nil
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, format, nil
}

// Load decodes the image at path in fsys. Files whose content is not a
// known image type fail with ErrUnsupportedFormat before decoding.
func Load(fsys fs.FS, path string) (*image.RGBA, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("asset: open %s: %w", path, err)
	}
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return nil, fmt.Errorf("asset: %s: content type %s: %w", path, kind.Extension, ErrUnsupportedFormat)
	}

	img, _, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Fit returns img scaled down so that neither side exceeds maxSize, or img
// itself if it already fits. Scaling uses Catmull-Rom filtering.
func Fit(img *image.RGBA, maxSize int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}
	nw, nh := maxSize, maxSize
	if w > h {
		nh = max(1, h*maxSize/w)
	} else {
		nw = max(1, w*maxSize/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// Upload creates an RGBA8 texture from img and returns it as a fixed
// graph image. The caller owns the texture.
func Upload(dev gpucore.Device, img *image.RGBA, label string) (graph.Image, error) {
	b := img.Bounds()
	if b.Empty() {
		return graph.Image{}, ErrEmptyImage
	}
	//nolint:gosec // G115: image sizes are bounded by GPU limits
	w, h := uint32(b.Dx()), uint32(b.Dy())
	id, err := dev.CreateTexture(&gpucore.TextureDesc{
		Label:  label,
		Width:  w,
		Height: h,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return graph.Image{}, fmt.Errorf("asset: texture %q: %w", label, err)
	}
	if err := dev.WriteTexture(id, tightPixels(img)); err != nil {
		dev.DestroyTexture(id)
		return graph.Image{}, fmt.Errorf("asset: upload %q: %w", label, err)
	}
	return graph.Image{
		Texture: id,
		Format:  gputypes.TextureFormatRGBA8Unorm,
		Width:   w,
		Height:  h,
		Sizing:  graph.SizeFixed,
		Fixed:   true,
	}, nil
}

// LoadTexture loads, fits and uploads the image at path in fsys.
func LoadTexture(dev gpucore.Device, fsys fs.FS, path string, opts ...Option) (graph.Image, error) {
	o := options{label: path}
	for _, opt := range opts {
		opt(&o)
	}
	img, err := Load(fsys, path)
	if err != nil {
		return graph.Image{}, err
	}
	return Upload(dev, Fit(img, o.maxSize), o.label)
}

// DefaultSampler creates the linear, repeating sampler most material
// textures want.
func DefaultSampler(dev gpucore.Device) (gpucore.SamplerID, error) {
	id, err := dev.CreateSampler(&gpucore.SamplerDesc{
		Label:       "asset_default",
		AddressMode: gputypes.AddressModeRepeat,
		Filter:      gputypes.FilterModeLinear,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("asset: sampler: %w", err)
	}
	return id, nil
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("asset: create file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("asset: encode PNG: %w", err)
	}
	return f.Close()
}

// tightPixels returns the pixel rows of img without stride padding.
func tightPixels(img *image.RGBA) []byte {
	b := img.Bounds()
	row := b.Dx() * 4
	if img.Stride == row && len(img.Pix) == row*b.Dy() {
		return img.Pix
	}
	out := make([]byte, 0, row*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[off:off+row]...)
	}
	return out
}
