// Package image provides image loading, compositing and encoding.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when image bytes cannot be decoded into a raster.
var ErrDecode = errors.New("failed to decode image")

// MaxDimension bounds the width and height of a loaded image.
const MaxDimension = 8192

// Layer is a decoded source image. The pixels are immutable after load.
type Layer struct {
	Path   string      // Original file path, empty for in-memory sources
	Name   string      // Display name
	Format string      // Decoder name (png, jpeg, tiff, ...)
	Image  image.Image // Loaded image data
}

// Load reads and decodes the image at path.
func Load(path string) (*Layer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	layer, err := Decode(filepath.Base(path), file)
	if err != nil {
		return nil, err
	}
	layer.Path = path
	return layer, nil
}

// Decode decodes an image from r. The result is converted to *image.RGBA so
// later compositing never has to go through the color.Color interface.
func Decode(name string, r io.Reader) (*Layer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %s: unsupported dimensions %dx%d", ErrDecode, name, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}

	return &Layer{
		Name:   name,
		Format: format,
		Image:  ToRGBA(img),
	}, nil
}

// NewLayer wraps an already decoded image.
func NewLayer(name string, img image.Image) *Layer {
	return &Layer{Name: name, Image: ToRGBA(img)}
}

// ToRGBA returns img as a zero-origin *image.RGBA, copying when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Width returns the image width in pixels.
func (l *Layer) Width() int {
	if l == nil || l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (l *Layer) Height() int {
	if l == nil || l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dy()
}

// SupportedFormats returns the list of supported image extensions.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".tif", ".tiff"}
}

// IsSupportedFormat checks if the given path has a supported image extension.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// FileFilter returns a file filter string for use in file dialogs.
func FileFilter() string {
	return "Image Files (*" + strings.Join(SupportedFormats(), ", *") + ")"
}
