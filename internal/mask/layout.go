package mask

import (
	"image"

	"garment-studio/pkg/geometry"
)

// Layout describes how an image is fitted into its container. Container and
// display sizes are logical pixels; Scale is the device pixel ratio applied to
// the backing surfaces so one drawing unit stays one logical pixel.
type Layout struct {
	Container geometry.Size
	Image     geometry.Size
	Scale     float64
}

func (l Layout) scale() float64 {
	if l.Scale <= 0 {
		return 1
	}
	return l.Scale
}

// Display returns the aspect-preserving logical size of both surfaces.
// With no container yet, the image's own size is used.
func (l Layout) Display() geometry.Size {
	if l.Container.Empty() {
		return l.Image
	}
	return geometry.FitSize(l.Container, l.Image)
}

// Backing returns the pixel size of the base and overlay surfaces.
func (l Layout) Backing() image.Point {
	return l.Display().Scale(l.scale()).Pixels()
}

// Offset returns the top-left of the centered display area inside the container.
func (l Layout) Offset() geometry.Point2D {
	d := l.Display()
	if l.Container.Empty() {
		return geometry.Point2D{}
	}
	return geometry.NewPoint2D((l.Container.Width-d.Width)/2, (l.Container.Height-d.Height)/2)
}

// ToSurface converts a logical point relative to the display area into
// backing-surface pixels.
func (l Layout) ToSurface(p geometry.Point2D) geometry.Point2D {
	return p.Scale(l.scale())
}
