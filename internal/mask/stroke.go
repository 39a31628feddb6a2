package mask

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// stampSegment draws a round-capped line of the given radius from a to b.
// Paint composites the (premultiplied) color source-over; erase scales existing pixels by the
// inverse coverage (destination-out). Coordinates are surface pixels.
func stampSegment(dst *image.RGBA, a, b r2.Vec, radius float64, c color.RGBA, erase bool) {
	if radius <= 0 {
		return
	}
	reach := radius + 1
	minX := int(math.Floor(math.Min(a.X, b.X) - reach))
	minY := int(math.Floor(math.Min(a.Y, b.Y) - reach))
	maxX := int(math.Ceil(math.Max(a.X, b.X) + reach))
	maxY := int(math.Ceil(math.Max(a.Y, b.Y) + reach))
	area := image.Rect(minX, minY, maxX, maxY).Intersect(dst.Bounds())
	if area.Empty() {
		return
	}

	ab := r2.Sub(b, a)
	lenSq := r2.Norm2(ab)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			p := r2.Vec{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			cov := coverage(segmentDistance(p, a, ab, lenSq), radius)
			if cov <= 0 {
				continue
			}
			i := dst.PixOffset(x, y)
			if erase {
				keep := 1 - cov
				for k := 0; k < 4; k++ {
					dst.Pix[i+k] = uint8(math.Round(float64(dst.Pix[i+k]) * keep))
				}
				continue
			}
			alpha := float64(c.A) / 255 * cov
			inv := 1 - alpha
			dst.Pix[i+0] = uint8(math.Round(float64(c.R)*cov + float64(dst.Pix[i+0])*inv))
			dst.Pix[i+1] = uint8(math.Round(float64(c.G)*cov + float64(dst.Pix[i+1])*inv))
			dst.Pix[i+2] = uint8(math.Round(float64(c.B)*cov + float64(dst.Pix[i+2])*inv))
			dst.Pix[i+3] = uint8(math.Round(float64(c.A)*cov + float64(dst.Pix[i+3])*inv))
		}
	}
}

// segmentDistance returns the distance from p to the segment starting at a
// with direction ab (lenSq = |ab|²).
func segmentDistance(p, a, ab r2.Vec, lenSq float64) float64 {
	ap := r2.Sub(p, a)
	t := 0.0
	if lenSq > 0 {
		t = math.Max(0, math.Min(1, r2.Dot(ap, ab)/lenSq))
	}
	closest := r2.Add(a, r2.Scale(t, ab))
	return r2.Norm(r2.Sub(p, closest))
}

// coverage antialiases the capsule edge over one pixel.
func coverage(dist, radius float64) float64 {
	return math.Max(0, math.Min(1, radius+0.5-dist))
}
