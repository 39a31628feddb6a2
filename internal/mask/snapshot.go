package mask

import (
	"bytes"
	"image"
	"image/draw"

	"garment-studio/pkg/colorutil"
)

// Snapshot is an immutable capture of the overlay raster. The pixel buffer is
// never written after construction.
type Snapshot struct {
	w, h int
	pix  []byte
}

// Blank returns a fully transparent snapshot of the given size.
func Blank(w, h int) Snapshot {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return Snapshot{w: w, h: h, pix: make([]byte, w*h*4)}
}

// Capture copies img into a new snapshot.
func Capture(img *image.RGBA) Snapshot {
	b := img.Bounds()
	s := Snapshot{w: b.Dx(), h: b.Dy(), pix: make([]byte, b.Dx()*b.Dy()*4)}
	for y := 0; y < s.h; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(s.pix[y*s.w*4:(y+1)*s.w*4], src[:s.w*4])
	}
	return s
}

// FromImage converts any image into a snapshot.
func FromImage(img image.Image) Snapshot {
	if rgba, ok := img.(*image.RGBA); ok {
		return Capture(rgba)
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return Snapshot{w: b.Dx(), h: b.Dy(), pix: rgba.Pix}
}

// Width returns the snapshot width in pixels.
func (s Snapshot) Width() int { return s.w }

// Height returns the snapshot height in pixels.
func (s Snapshot) Height() int { return s.h }

// Bounds returns the zero-origin rectangle covered by the snapshot.
func (s Snapshot) Bounds() image.Rectangle { return image.Rect(0, 0, s.w, s.h) }

// Image returns a mutable copy of the snapshot pixels.
func (s Snapshot) Image() *image.RGBA {
	img := image.NewRGBA(s.Bounds())
	copy(img.Pix, s.pix)
	return img
}

// Equal reports whether two snapshots hold identical pixels.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.w == o.w && s.h == o.h && bytes.Equal(s.pix, o.pix)
}

// IsBlank reports whether no pixel is marked.
func (s Snapshot) IsBlank() bool {
	return colorutil.IsBlank(&image.RGBA{Pix: s.pix, Stride: s.w * 4, Rect: s.Bounds()})
}
