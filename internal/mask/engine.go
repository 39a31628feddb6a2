// Package mask implements the freehand masking engine: a base surface showing
// the source image, an overlay surface holding user marks, and the per-image
// undo/redo history of overlay snapshots.
package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	studioimage "garment-studio/internal/image"
	"garment-studio/pkg/geometry"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrNotBound is returned when no image is bound to the engine.
	ErrNotBound = errors.New("no image bound to canvas")
	// ErrNoStroke is returned by EndStroke when no stroke is in progress.
	ErrNoStroke = errors.New("no stroke in progress")
)

// Target is an image the engine can edit: its source pixels and the history
// that owns its mask state.
type Target interface {
	Source() image.Image
	History() *History
}

// Engine owns the base and overlay surfaces for the bound image. All methods
// run to completion under the engine lock, so a stroke segment, undo or
// resize never interleaves with another.
type Engine struct {
	mu     sync.Mutex
	brush  *BrushState
	scaler draw.Scaler

	target  Target
	layout  Layout
	base    *image.RGBA
	overlay *image.RGBA

	stroking    bool
	strokeTool  Tool
	strokeColor color.RGBA
	strokeWidth float64
	last        r2.Vec
}

// NewEngine creates an engine that reads tool settings from brush.
func NewEngine(brush *BrushState) *Engine {
	if brush == nil {
		brush = NewBrushState(ToolPaint, DefaultBrushSize)
	}
	return &Engine{
		brush:  brush,
		scaler: draw.CatmullRom,
		layout: Layout{Scale: 1},
	}
}

// Brush returns the brush state read at every stroke start.
func (e *Engine) Brush() *BrushState {
	return e.brush
}

// Bind makes t the edited image and rebuilds both surfaces from its source
// and its history cursor. Passing nil clears the surfaces.
func (e *Engine) Bind(t Target) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.target = t
	e.stroking = false
	e.rebuild()
}

// Bound returns the bound target, or nil.
func (e *Engine) Bound() Target {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// Resize redoes the layout for a new container size or device scale. Any
// stroke in progress is dropped and the overlay is restored from history.
func (e *Engine) Resize(containerW, containerH, scale float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := Layout{
		Container: geometry.NewSize(containerW, containerH),
		Image:     e.layout.Image,
		Scale:     scale,
	}
	if next == e.layout && e.base != nil {
		return
	}
	e.layout = next
	e.stroking = false
	e.rebuild()
}

// Layout returns the current layout.
func (e *Engine) Layout() Layout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout
}

// SurfaceSize returns the backing pixel size of both surfaces, or the zero
// point when nothing is bound.
func (e *Engine) SurfaceSize() image.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.base == nil {
		return image.Point{}
	}
	return e.base.Bounds().Size()
}

// SurfaceFor returns the backing size an image of the given size would get
// under the current container and scale.
func (e *Engine) SurfaceFor(imageW, imageH int) image.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.layout
	l.Image = geometry.NewSize(float64(imageW), float64(imageH))
	return l.Backing()
}

// rebuild must be called with e.mu held.
func (e *Engine) rebuild() {
	if e.target == nil || e.target.Source() == nil {
		e.base, e.overlay = nil, nil
		e.layout.Image = geometry.Size{}
		return
	}
	src := e.target.Source()
	b := src.Bounds()
	e.layout.Image = geometry.NewSize(float64(b.Dx()), float64(b.Dy()))
	size := e.layout.Backing()

	e.base = studioimage.Resize(src, size.X, size.Y, e.scaler)
	e.overlay = e.restore(e.target.History().Current(), size)
}

// restore returns a fresh overlay holding s, scaled to size when needed.
func (e *Engine) restore(s Snapshot, size image.Point) *image.RGBA {
	if s.Bounds().Size() == size {
		return s.Image()
	}
	if s.IsBlank() {
		return image.NewRGBA(image.Rectangle{Max: size})
	}
	return studioimage.Resize(s.Image(), size.X, size.Y, draw.ApproxBiLinear)
}

// BeginStroke starts a stroke at p (logical pixels relative to the display
// area) with the brush settings in effect right now.
func (e *Engine) BeginStroke(p geometry.Point2D) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.overlay == nil {
		return ErrNotBound
	}
	if e.stroking {
		e.commit()
	}
	tool, size, c := e.brush.snapshot()
	e.stroking = true
	e.strokeTool = tool
	e.strokeColor = c
	e.strokeWidth = float64(size) * e.layout.scale()
	e.last = e.toSurface(p)
	stampSegment(e.overlay, e.last, e.last, e.strokeWidth/2, e.strokeColor, e.strokeTool == ToolErase)
	return nil
}

// ExtendStroke draws a segment from the previous pointer position to p.
func (e *Engine) ExtendStroke(p geometry.Point2D) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stroking {
		return ErrNoStroke
	}
	next := e.toSurface(p)
	stampSegment(e.overlay, e.last, next, e.strokeWidth/2, e.strokeColor, e.strokeTool == ToolErase)
	e.last = next
	return nil
}

// EndStroke commits the overlay as a new snapshot and reports whether the
// bound image now has drawings.
func (e *Engine) EndStroke() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stroking {
		return false, ErrNoStroke
	}
	e.commit()
	return e.target.History().HasDrawings(), nil
}

// commit must be called with e.mu held.
func (e *Engine) commit() {
	e.stroking = false
	e.target.History().Commit(Capture(e.overlay))
}

// Stroking reports whether a stroke is in progress.
func (e *Engine) Stroking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stroking
}

func (e *Engine) toSurface(p geometry.Point2D) r2.Vec {
	s := e.layout.ToSurface(p)
	return r2.Vec{X: s.X, Y: s.Y}
}

// Undo steps the bound history back and restores the overlay. Returns
// whether the image still has drawings.
func (e *Engine) Undo() (bool, error) {
	return e.step(func(h *History) (Snapshot, bool) { return h.Undo() })
}

// Redo steps the bound history forward and restores the overlay.
func (e *Engine) Redo() (bool, error) {
	return e.step(func(h *History) (Snapshot, bool) { return h.Redo() })
}

func (e *Engine) step(move func(*History) (Snapshot, bool)) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.overlay == nil {
		return false, ErrNotBound
	}
	// An uncommitted stroke is discarded even when the cursor cannot move.
	dirty := e.stroking
	e.stroking = false
	h := e.target.History()
	if s, moved := move(h); moved || dirty {
		e.overlay = e.restore(s, e.overlay.Bounds().Size())
	}
	return h.HasDrawings(), nil
}

// Clear commits a blank overlay, keeping the previous marks undoable.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.overlay == nil {
		return ErrNotBound
	}
	e.stroking = false
	e.overlay = image.NewRGBA(e.overlay.Bounds())
	e.target.History().Commit(Capture(e.overlay))
	return nil
}

// Overlay returns a copy of the overlay surface.
func (e *Engine) Overlay() *image.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.overlay == nil {
		return nil
	}
	return Capture(e.overlay).Image()
}

// Composite returns the base surface with the overlay drawn on top, for
// display.
func (e *Engine) Composite() *image.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.base == nil {
		return nil
	}
	out := image.NewRGBA(e.base.Bounds())
	draw.Draw(out, out.Bounds(), e.base, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), e.overlay, image.Point{}, draw.Over)
	return out
}

// MergeForImage flattens t at w x h: the source image scaled to the output
// size with the snapshot at t's history cursor composited on top. It reads
// only t, never the surfaces of the bound image.
func (e *Engine) MergeForImage(t Target, w, h int) (*image.RGBA, error) {
	return Merge(t, w, h)
}

// Merge is MergeForImage without an engine.
func Merge(t Target, w, h int) (*image.RGBA, error) {
	if t == nil || t.Source() == nil {
		return nil, fmt.Errorf("%w: no source image", studioimage.ErrDecode)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", w, h)
	}
	c := studioimage.NewComposite(w, h)
	c.AddLayer(t.Source(), studioimage.BlendOver)
	if s := t.History().Current(); !s.IsBlank() {
		c.AddLayer(s.Image(), studioimage.BlendOver)
	}
	return c.Render(), nil
}
