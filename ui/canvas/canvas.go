// Package canvas provides the mask drawing widget: the bound image fitted
// into the widget with the user's marks on top, driven by pointer strokes.
package canvas

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"garment-studio/internal/app"
	"garment-studio/internal/mask"
	"garment-studio/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

var background = color.RGBA{R: 0x2b, G: 0x2b, B: 0x2b, A: 0xff}

// MaskCanvas displays the engine's composite and turns drags into strokes.
// Wheel scrolling resizes the brush.
type MaskCanvas struct {
	widget.BaseWidget

	state  *app.State
	engine *mask.Engine
	raster *fynecanvas.Raster
	cursor *brushCursor

	stroking bool

	onBrushChange func(size int)
	onError       func(error)
}

var (
	_ fyne.Draggable    = (*MaskCanvas)(nil)
	_ fyne.Scrollable   = (*MaskCanvas)(nil)
	_ fyne.Tappable     = (*MaskCanvas)(nil)
	_ desktop.Hoverable = (*MaskCanvas)(nil)
)

// NewMaskCanvas creates a canvas editing the active slot of state.
func NewMaskCanvas(state *app.State) *MaskCanvas {
	mc := &MaskCanvas{
		state:  state,
		engine: state.Engine(),
		cursor: newBrushCursor(),
	}
	mc.raster = fynecanvas.NewRaster(mc.draw)
	mc.raster.ScaleMode = fynecanvas.ImageScalePixels
	mc.raster.SetMinSize(fyne.NewSize(320, 240))

	refresh := func(interface{}) { mc.Refresh() }
	state.On(app.EventActiveChanged, refresh)
	state.On(app.EventMaskChanged, refresh)
	state.On(app.EventSessionReset, refresh)
	state.On(app.EventProjectLoaded, refresh)

	mc.ExtendBaseWidget(mc)
	return mc
}

// OnBrushChange registers a callback for wheel-driven brush size changes.
func (mc *MaskCanvas) OnBrushChange(callback func(size int)) {
	mc.onBrushChange = callback
}

// OnError registers a callback for stroke errors other than "nothing bound".
func (mc *MaskCanvas) OnError(callback func(error)) {
	mc.onError = callback
}

// deviceScale returns the pixel ratio of the window showing the canvas.
func (mc *MaskCanvas) deviceScale() float64 {
	if fyne.CurrentApp() == nil {
		return 1
	}
	c := fyne.CurrentApp().Driver().CanvasForObject(mc)
	if c == nil || c.Scale() <= 0 {
		return 1
	}
	return float64(c.Scale())
}

// relayout hands the new container size to the engine.
func (mc *MaskCanvas) relayout(size fyne.Size) {
	if size.Width <= 0 || size.Height <= 0 {
		return
	}
	mc.stroking = false
	mc.engine.Resize(float64(size.Width), float64(size.Height), mc.deviceScale())
}

// toDisplay converts a widget position into logical coordinates relative to
// the fitted image.
func (mc *MaskCanvas) toDisplay(pos fyne.Position) geometry.Point2D {
	off := mc.engine.Layout().Offset()
	return geometry.NewPoint2D(float64(pos.X)-off.X, float64(pos.Y)-off.Y)
}

func (mc *MaskCanvas) draw(w, h int) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	comp := mc.engine.Composite()
	if comp == nil {
		return out
	}
	l := mc.engine.Layout()
	scale := l.Scale
	if scale <= 0 {
		scale = 1
	}
	off := l.Offset().Scale(scale)
	at := image.Pt(int(off.X+0.5), int(off.Y+0.5))
	draw.Draw(out, comp.Bounds().Add(at), comp, image.Point{}, draw.Src)
	return out
}

func (mc *MaskCanvas) reportErr(err error) {
	if err == nil || errors.Is(err, mask.ErrNotBound) || errors.Is(err, app.ErrNoActiveSlot) {
		return
	}
	logrus.WithError(err).Debug("Stroke failed")
	if mc.onError != nil {
		mc.onError(err)
	}
}

// Dragged starts a stroke at the press point on the first event and extends
// it to the pointer on every event.
func (mc *MaskCanvas) Dragged(ev *fyne.DragEvent) {
	if !mc.stroking {
		press := mc.toDisplay(ev.Position.Subtract(ev.Dragged))
		if err := mc.engine.BeginStroke(press); err != nil {
			mc.reportErr(err)
			mc.cursor.moveTo(ev.Position)
			return
		}
		mc.stroking = true
	}
	mc.reportErr(mc.engine.ExtendStroke(mc.toDisplay(ev.Position)))
	mc.cursor.moveTo(ev.Position)
	mc.raster.Refresh()
}

// DragEnd commits the stroke through the session so listeners see it.
func (mc *MaskCanvas) DragEnd() {
	if !mc.stroking {
		return
	}
	mc.stroking = false
	_, err := mc.state.EndStroke()
	mc.reportErr(err)
}

// Tapped stamps a single dot.
func (mc *MaskCanvas) Tapped(ev *fyne.PointEvent) {
	if err := mc.engine.BeginStroke(mc.toDisplay(ev.Position)); err != nil {
		mc.reportErr(err)
		return
	}
	_, err := mc.state.EndStroke()
	mc.reportErr(err)
}

// Scrolled adjusts the brush size by one step per wheel event.
func (mc *MaskCanvas) Scrolled(ev *fyne.ScrollEvent) {
	size := mc.engine.Brush().AdjustByWheel(ev.Scrolled.DY)
	mc.cursor.moveTo(ev.Position)
	mc.Refresh()
	if mc.onBrushChange != nil {
		mc.onBrushChange(size)
	}
}

// MouseIn shows the brush cursor.
func (mc *MaskCanvas) MouseIn(ev *desktop.MouseEvent) {
	mc.cursor.moveTo(ev.Position)
	mc.cursor.setVisible(mc.engine.Bound() != nil)
	mc.Refresh()
}

// MouseMoved follows the pointer with the brush cursor.
func (mc *MaskCanvas) MouseMoved(ev *desktop.MouseEvent) {
	mc.cursor.moveTo(ev.Position)
	mc.cursor.refresh()
}

// MouseOut hides the brush cursor.
func (mc *MaskCanvas) MouseOut() {
	mc.cursor.setVisible(false)
	mc.cursor.refresh()
}

// Refresh redraws the image and the brush cursor.
func (mc *MaskCanvas) Refresh() {
	brush := mc.engine.Brush()
	mc.cursor.style(brush.Size(), brush.Tool())
	mc.BaseWidget.Refresh()
}

// CreateRenderer implements fyne.Widget.
func (mc *MaskCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &maskCanvasRenderer{canvas: mc}
}

type maskCanvasRenderer struct {
	canvas *MaskCanvas
}

func (r *maskCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.relayout(size)
	r.canvas.raster.Resize(size)
	r.canvas.raster.Move(fyne.NewPos(0, 0))
	r.canvas.cursor.layout()
}

func (r *maskCanvasRenderer) MinSize() fyne.Size {
	return r.canvas.raster.MinSize()
}

func (r *maskCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
	r.canvas.cursor.refresh()
}

func (r *maskCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster, r.canvas.cursor.circle}
}

func (r *maskCanvasRenderer) Destroy() {}
