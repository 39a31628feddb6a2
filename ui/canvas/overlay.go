package canvas

import (
	"image/color"
	"sync"

	"garment-studio/internal/mask"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
)

var (
	paintCursorColor = color.NRGBA{R: 0xff, G: 0x40, B: 0x40, A: 0xdd}
	eraseCursorColor = color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xdd}
)

// brushCursor is the outline circle that follows the pointer, sized to the
// brush diameter.
type brushCursor struct {
	mu      sync.Mutex
	circle  *fynecanvas.Circle
	center  fyne.Position
	size    float32
	visible bool
}

func newBrushCursor() *brushCursor {
	c := fynecanvas.NewCircle(color.Transparent)
	c.StrokeWidth = 1.5
	c.StrokeColor = paintCursorColor
	c.Hide()
	return &brushCursor{circle: c, size: mask.DefaultBrushSize}
}

func (b *brushCursor) style(size int, tool mask.Tool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size = float32(size)
	if tool == mask.ToolErase {
		b.circle.StrokeColor = eraseCursorColor
	} else {
		b.circle.StrokeColor = paintCursorColor
	}
}

func (b *brushCursor) moveTo(pos fyne.Position) {
	b.mu.Lock()
	b.center = pos
	b.mu.Unlock()
}

func (b *brushCursor) setVisible(v bool) {
	b.mu.Lock()
	b.visible = v
	b.mu.Unlock()
}

// layout positions the circle around the pointer.
func (b *brushCursor) layout() {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.size / 2
	b.circle.Position1 = fyne.NewPos(b.center.X-r, b.center.Y-r)
	b.circle.Position2 = fyne.NewPos(b.center.X+r, b.center.Y+r)
	if b.visible {
		b.circle.Show()
	} else {
		b.circle.Hide()
	}
}

func (b *brushCursor) refresh() {
	b.layout()
	b.circle.Refresh()
}
