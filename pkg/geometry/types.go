// Package geometry provides the small set of geometric types shared by the
// canvas engine and the UI.
package geometry

import (
	"image"
	"math"
)

// Point2D is a position in logical (device independent) canvas pixels.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// AspectRatio returns width/height, or 0 for an empty size.
func (s Size) AspectRatio() float64 {
	if s.Empty() {
		return 0
	}
	return s.Width / s.Height
}

// Scale multiplies both dimensions by factor.
func (s Size) Scale(factor float64) Size {
	return Size{Width: s.Width * factor, Height: s.Height * factor}
}

// Pixels rounds the size to whole pixels, never below 1x1.
func (s Size) Pixels() image.Point {
	w := int(math.Round(s.Width))
	h := int(math.Round(s.Height))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.Pt(w, h)
}

// FitSize returns the largest size with the content's aspect ratio that fits
// inside the container. A wider image is fitted to the container width,
// otherwise it is fitted to the container height.
func FitSize(container, content Size) Size {
	if container.Empty() || content.Empty() {
		return Size{}
	}
	imageAR := content.AspectRatio()
	containerAR := container.AspectRatio()
	if imageAR > containerAR {
		return Size{Width: container.Width, Height: container.Width / imageAR}
	}
	return Size{Width: container.Height * imageAR, Height: container.Height}
}
