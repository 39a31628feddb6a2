package image

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// BlendMode specifies how a layer is combined with what is below it.
type BlendMode int

const (
	// BlendOver composites the layer over the destination (source-over).
	BlendOver BlendMode = iota
	// BlendSource replaces the destination with the layer.
	BlendSource
)

func (m BlendMode) String() string {
	switch m {
	case BlendOver:
		return "Over"
	case BlendSource:
		return "Source"
	default:
		return "Unknown"
	}
}

func (m BlendMode) op() draw.Op {
	if m == BlendSource {
		return draw.Src
	}
	return draw.Over
}

// Composite combines layers into a single image of a fixed size. Every layer
// is stretched to cover the whole output.
type Composite struct {
	Width     int
	Height    int
	Layers    []*CompositeLayer
	BackColor color.Color
	Scaler    draw.Scaler
}

// CompositeLayer wraps an image with compositing settings.
type CompositeLayer struct {
	Image     image.Image
	BlendMode BlendMode
}

// NewComposite creates a new Composite with the specified dimensions.
func NewComposite(width, height int) *Composite {
	return &Composite{
		Width:     width,
		Height:    height,
		BackColor: color.White,
		Scaler:    draw.CatmullRom,
	}
}

// AddLayer adds a layer on top of the existing ones.
func (c *Composite) AddLayer(img image.Image, mode BlendMode) {
	c.Layers = append(c.Layers, &CompositeLayer{Image: img, BlendMode: mode})
}

// Render produces the final composited image.
func (c *Composite) Render() *image.RGBA {
	result := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	if c.BackColor != nil {
		draw.Draw(result, result.Bounds(), &image.Uniform{C: c.BackColor}, image.Point{}, draw.Src)
	}

	for _, cl := range c.Layers {
		if cl == nil || cl.Image == nil {
			continue
		}
		ScaleInto(result, cl.Image, c.Scaler, cl.BlendMode)
	}
	return result
}

// ScaleInto draws src stretched over the whole of dst. Same-sized sources are
// drawn without resampling.
func ScaleInto(dst *image.RGBA, src image.Image, scaler draw.Scaler, mode BlendMode) {
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, mode.op())
		return
	}
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), mode.op(), nil)
}

// Resize returns a copy of src scaled to w x h.
func Resize(src image.Image, w, h int, scaler draw.Scaler) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	ScaleInto(dst, src, scaler, BlendSource)
	return dst
}
