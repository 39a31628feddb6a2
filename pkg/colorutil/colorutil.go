// Package colorutil provides shared color utilities for the mask editor.
package colorutil

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// Common colors used by the canvas and the flattened output.
var (
	Black       = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Transparent = color.RGBA{}
	// MaskRed is the default marking color for painted mask strokes.
	MaskRed = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	// Backdrop fills canvas area not covered by the image.
	Backdrop = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

// ParseHex parses "#rrggbb" or "#rrggbbaa" (leading # optional). The hex
// digits are straight alpha; the result is premultiplied like every
// color.RGBA.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	if len(s) == 6 {
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	n := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return color.RGBAModel.Convert(n).(color.RGBA), nil
}

// Hex formats c as "#rrggbb", appending straight alpha when it is not opaque.
func Hex(c color.RGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}

// IsBlank reports whether every pixel of img is fully transparent.
func IsBlank(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return false
		}
	}
	return true
}

// Coverage returns the fraction of pixels with non-zero alpha.
func Coverage(img *image.RGBA) float64 {
	total := len(img.Pix) / 4
	if total == 0 {
		return 0
	}
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			n++
		}
	}
	return float64(n) / float64(total)
}
