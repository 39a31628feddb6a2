package mask

import (
	"errors"
	"image"
	"image/color"
	"testing"

	studioimage "garment-studio/internal/image"
	"garment-studio/pkg/colorutil"
	"garment-studio/pkg/geometry"
)

type testTarget struct {
	src     image.Image
	history *History
}

func (t *testTarget) Source() image.Image { return t.src }
func (t *testTarget) History() *History  { return t.history }

func newTarget(w, h int) *testTarget {
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i+2], src.Pix[i+3] = 255, 255
	}
	return &testTarget{src: src, history: NewHistory(Blank(w, h))}
}

func boundEngine(t *testing.T, w, h int) (*Engine, *testTarget) {
	t.Helper()
	e := NewEngine(NewBrushState(ToolPaint, 10))
	target := newTarget(w, h)
	e.Bind(target)
	return e, target
}

func stroke(t *testing.T, e *Engine, pts ...geometry.Point2D) bool {
	t.Helper()
	if err := e.BeginStroke(pts[0]); err != nil {
		t.Fatalf("BeginStroke() error = %v", err)
	}
	for _, p := range pts[1:] {
		if err := e.ExtendStroke(p); err != nil {
			t.Fatalf("ExtendStroke() error = %v", err)
		}
	}
	has, err := e.EndStroke()
	if err != nil {
		t.Fatalf("EndStroke() error = %v", err)
	}
	return has
}

func TestHistoryCommitUndoRedo(t *testing.T) {
	h := NewHistory(Blank(4, 4))
	if h.Len() != 1 || h.Cursor() != 0 || h.HasDrawings() {
		t.Fatalf("new history: len=%d cursor=%d", h.Len(), h.Cursor())
	}

	if _, moved := h.Undo(); moved {
		t.Error("Undo() at floor should be a no-op")
	}

	marked := image.NewRGBA(image.Rect(0, 0, 4, 4))
	marked.SetRGBA(1, 1, color.RGBA{255, 0, 0, 255})
	a := Capture(marked)
	h.Commit(a)
	h.Commit(Blank(4, 4))
	if h.Len() != 3 || h.Cursor() != 2 {
		t.Fatalf("after commits: len=%d cursor=%d", h.Len(), h.Cursor())
	}
	if _, moved := h.Redo(); moved {
		t.Error("Redo() at newest entry should be a no-op")
	}

	s, _ := h.Undo()
	if !s.Equal(a) || !h.HasDrawings() {
		t.Error("Undo() should return the previous snapshot")
	}
	h.Undo()
	if h.HasDrawings() || !h.CanRedo() || h.CanUndo() {
		t.Error("cursor should be on the floor with redo available")
	}
}

func TestHistoryCommitTruncatesRedo(t *testing.T) {
	h := NewHistory(Blank(2, 2))
	for i := 0; i < 4; i++ {
		h.Commit(Blank(2, 2))
	}
	h.Undo()
	h.Undo()
	h.Commit(Blank(2, 2))

	if h.Len() != 4 || h.Cursor() != 3 {
		t.Errorf("len=%d cursor=%d, want 4/3", h.Len(), h.Cursor())
	}
	if h.CanRedo() {
		t.Error("redo should be unavailable after a new commit")
	}
}

func TestHistoryLimitKeepsFloor(t *testing.T) {
	floor := Blank(2, 2)
	h := NewHistory(floor)
	h.SetLimit(3)
	for i := 0; i < 10; i++ {
		h.Commit(Blank(2, 2))
	}
	if h.Len() != 3 || h.Cursor() != 2 {
		t.Errorf("len=%d cursor=%d, want 3/2", h.Len(), h.Cursor())
	}
	if !h.Floor().Equal(floor) {
		t.Error("floor snapshot should never be dropped")
	}
}

func markedSnapshot(v uint8) Snapshot {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Pix[0], img.Pix[3] = v, 255
	return Capture(img)
}

func TestHistoryShrinkKeepsCurrent(t *testing.T) {
	tests := []struct {
		name       string
		undos      int
		limit      int
		wantLen    int
		wantCursor int
	}{
		{"cursor in the middle", 6, 5, 5, 4},
		{"cursor near the floor", 8, 3, 3, 2},
		{"cursor at the top", 0, 4, 4, 3},
		{"only floor and current", 6, 2, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(Blank(2, 2))
			for i := 1; i <= 10; i++ {
				h.Commit(markedSnapshot(uint8(i)))
			}
			for i := 0; i < tt.undos; i++ {
				h.Undo()
			}
			before := h.Current()

			h.SetLimit(tt.limit)

			if h.Len() != tt.wantLen || h.Cursor() != tt.wantCursor {
				t.Errorf("len=%d cursor=%d, want %d/%d", h.Len(), h.Cursor(), tt.wantLen, tt.wantCursor)
			}
			if !h.Current().Equal(before) {
				t.Error("shrinking the limit changed the current snapshot")
			}
			if !h.HasDrawings() {
				t.Error("shrinking the limit lost the drawings")
			}
			if !h.Floor().IsBlank() {
				t.Error("floor snapshot should stay blank")
			}
		})
	}
}

func TestHistoryShrinkThenUndoReachesFloor(t *testing.T) {
	h := NewHistory(Blank(2, 2))
	for i := 1; i <= 6; i++ {
		h.Commit(markedSnapshot(uint8(i)))
	}
	h.Undo()
	h.SetLimit(3)
	if h.CanRedo() {
		t.Error("redo branch should be dropped before older entries")
	}
	h.Undo()
	h.Undo()
	if h.HasDrawings() || h.Cursor() != 0 {
		t.Errorf("cursor=%d after undoing past every kept entry", h.Cursor())
	}
}

func TestEngineSingleStroke(t *testing.T) {
	e, target := boundEngine(t, 1024, 768)

	has := stroke(t, e, geometry.NewPoint2D(100, 100), geometry.NewPoint2D(200, 150))
	if !has {
		t.Error("EndStroke() hasDrawings = false, want true")
	}
	if target.history.Len() != 2 || target.history.Cursor() != 1 {
		t.Errorf("history len=%d cursor=%d, want 2/1", target.history.Len(), target.history.Cursor())
	}

	ov := e.Overlay()
	if got := ov.RGBAAt(150, 125); got.A == 0 || got.R == 0 {
		t.Errorf("pixel on the segment = %v, want marked", got)
	}
	if got := ov.RGBAAt(10, 10); got.A != 0 {
		t.Errorf("pixel far from stroke = %v, want transparent", got)
	}
}

func TestEngineStrokeIsContinuous(t *testing.T) {
	e, _ := boundEngine(t, 400, 300)
	stroke(t, e, geometry.NewPoint2D(10, 150), geometry.NewPoint2D(390, 150))

	ov := e.Overlay()
	for x := 10; x < 390; x++ {
		if ov.RGBAAt(x, 150).A == 0 {
			t.Fatalf("gap in stroke at x=%d", x)
		}
	}
}

func TestEngineUndoRoundTripToBlank(t *testing.T) {
	e, target := boundEngine(t, 200, 100)
	const n = 5
	for i := 0; i < n; i++ {
		y := float64(10 + i*15)
		stroke(t, e, geometry.NewPoint2D(10, y), geometry.NewPoint2D(190, y))
	}
	for i := 0; i < n; i++ {
		if _, err := e.Undo(); err != nil {
			t.Fatalf("Undo() error = %v", err)
		}
	}
	if !Capture(e.Overlay()).Equal(target.history.Floor()) {
		t.Error("overlay after undoing every stroke should equal the blank floor")
	}
	if has, _ := e.Undo(); has {
		t.Error("hasDrawings after undo to floor = true")
	}
}

func TestEngineRedoRestoresIdenticalPixels(t *testing.T) {
	e, _ := boundEngine(t, 200, 100)
	stroke(t, e, geometry.NewPoint2D(20, 20), geometry.NewPoint2D(180, 80))
	before := Capture(e.Overlay())

	e.Undo()
	has, err := e.Redo()
	if err != nil || !has {
		t.Fatalf("Redo() = %v, %v", has, err)
	}
	if !Capture(e.Overlay()).Equal(before) {
		t.Error("Redo() should restore byte-identical overlay")
	}
}

func TestEngineEraseLeavesBaseUntouched(t *testing.T) {
	e, target := boundEngine(t, 100, 100)
	stroke(t, e, geometry.NewPoint2D(10, 50), geometry.NewPoint2D(90, 50))

	e.Brush().SetTool(ToolErase)
	e.Brush().SetSize(MaxBrushSize)
	stroke(t, e, geometry.NewPoint2D(0, 50), geometry.NewPoint2D(100, 50))

	if got := e.Overlay().RGBAAt(50, 50); got.A != 0 {
		t.Errorf("erased pixel = %v, want transparent", got)
	}
	if got := e.Composite().RGBAAt(50, 50); got.B != 255 {
		t.Errorf("composite pixel = %v, want base blue", got)
	}
	if target.history.Len() != 3 {
		t.Errorf("history len = %d, want 3", target.history.Len())
	}
}

func TestEngineDeviceScale(t *testing.T) {
	e := NewEngine(nil)
	e.Resize(400, 300, 2)
	e.Bind(newTarget(1600, 900))

	l := e.Layout()
	if d := l.Display(); d.Width != 400 || d.Height != 225 {
		t.Errorf("Display() = %v, want 400x225", d)
	}
	if got := e.SurfaceSize(); got != image.Pt(800, 450) {
		t.Errorf("SurfaceSize() = %v, want 800x450", got)
	}

	stroke(t, e, geometry.NewPoint2D(100, 100), geometry.NewPoint2D(101, 100))
	if got := e.Overlay().RGBAAt(201, 200); got.A == 0 {
		t.Error("logical point (100,100) should land on surface pixel (200,200)")
	}
}

func TestEngineResizeKeepsMask(t *testing.T) {
	e, target := boundEngine(t, 200, 200)
	stroke(t, e, geometry.NewPoint2D(50, 100), geometry.NewPoint2D(150, 100))

	e.Resize(100, 100, 1)
	if got := e.SurfaceSize(); got != image.Pt(100, 100) {
		t.Fatalf("SurfaceSize() = %v", got)
	}
	if e.Overlay().RGBAAt(50, 50).A == 0 {
		t.Error("mask should survive a resize")
	}
	if target.history.Len() != 2 {
		t.Errorf("resize should not touch history, len = %d", target.history.Len())
	}
}

func TestEngineNotBound(t *testing.T) {
	e := NewEngine(nil)
	if err := e.BeginStroke(geometry.NewPoint2D(1, 1)); !errors.Is(err, ErrNotBound) {
		t.Errorf("BeginStroke() error = %v, want ErrNotBound", err)
	}
	if _, err := e.EndStroke(); !errors.Is(err, ErrNoStroke) {
		t.Errorf("EndStroke() error = %v, want ErrNoStroke", err)
	}
	if _, err := e.Undo(); !errors.Is(err, ErrNotBound) {
		t.Errorf("Undo() error = %v, want ErrNotBound", err)
	}
	if e.Composite() != nil {
		t.Error("Composite() should be nil with nothing bound")
	}
}

func TestEngineRebindSwitchesSurfaces(t *testing.T) {
	e, a := boundEngine(t, 100, 100)
	stroke(t, e, geometry.NewPoint2D(10, 10), geometry.NewPoint2D(90, 90))

	b := newTarget(100, 100)
	e.Bind(b)
	if !Capture(e.Overlay()).IsBlank() {
		t.Error("binding a fresh image should show a blank overlay")
	}
	stroke(t, e, geometry.NewPoint2D(10, 90), geometry.NewPoint2D(90, 10))
	if a.history.Len() != 2 || b.history.Len() != 2 {
		t.Errorf("histories len a=%d b=%d, want 2/2", a.history.Len(), b.history.Len())
	}

	e.Bind(a)
	if !Capture(e.Overlay()).Equal(a.history.Current()) {
		t.Error("rebinding should restore the image's own mask")
	}
}

func TestMergeForImage(t *testing.T) {
	e, a := boundEngine(t, 400, 300)
	stroke(t, e, geometry.NewPoint2D(0, 150), geometry.NewPoint2D(400, 150))

	b := newTarget(100, 100)
	e.Bind(b)

	out, err := e.MergeForImage(a, 800, 600)
	if err != nil {
		t.Fatalf("MergeForImage() error = %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 800, 600) {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	if got := out.RGBAAt(400, 300); got.R < 200 {
		t.Errorf("masked pixel = %v, want red", got)
	}
	if got := out.RGBAAt(400, 50); got.B < 200 || got.R > 50 {
		t.Errorf("unmasked pixel = %v, want blue", got)
	}
}

func TestEngineUndoRedoDuringStroke(t *testing.T) {
	tests := []struct {
		name    string
		prior   int
		step    func(*Engine) (bool, error)
		wantHas bool
	}{
		{"undo at floor", 0, (*Engine).Undo, false},
		{"redo at top", 1, (*Engine).Redo, true},
		{"undo with history", 1, (*Engine).Undo, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, target := boundEngine(t, 200, 100)
			for i := 0; i < tt.prior; i++ {
				stroke(t, e, geometry.NewPoint2D(10, 10), geometry.NewPoint2D(190, 10))
			}
			if err := e.BeginStroke(geometry.NewPoint2D(10, 80)); err != nil {
				t.Fatal(err)
			}
			if err := e.ExtendStroke(geometry.NewPoint2D(190, 80)); err != nil {
				t.Fatal(err)
			}

			has, err := tt.step(e)
			if err != nil {
				t.Fatalf("step error = %v", err)
			}
			if has != tt.wantHas {
				t.Errorf("hasDrawings = %v, want %v", has, tt.wantHas)
			}
			if e.Stroking() {
				t.Error("stroke still in progress")
			}
			if !Capture(e.Overlay()).Equal(target.history.Current()) {
				t.Error("overlay keeps uncommitted stroke pixels")
			}
			if got := e.Overlay().RGBAAt(100, 80); got.A != 0 {
				t.Errorf("pixel under discarded stroke = %v", got)
			}
		})
	}
}

func TestMergeTranslucentColor(t *testing.T) {
	col, err := colorutil.ParseHex("#ff000080")
	if err != nil {
		t.Fatal(err)
	}
	brush := NewBrushState(ToolPaint, 20)
	brush.SetColor(col)
	e := NewEngine(brush)

	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	target := &testTarget{src: src, history: NewHistory(Blank(100, 100))}
	e.Bind(target)
	stroke(t, e, geometry.NewPoint2D(50, 50))

	dot := e.Overlay().RGBAAt(50, 50)
	if dot.R > dot.A || dot.G > dot.A || dot.B > dot.A {
		t.Fatalf("overlay pixel %v is not premultiplied", dot)
	}

	out, err := Merge(target, 100, 100)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	got := out.RGBAAt(50, 50)
	if got.R < 250 || got.G < 120 || got.G > 135 || got.B != got.G || got.A != 255 {
		t.Errorf("flattened pixel = %v, want about {255 127 127 255}", got)
	}
}

func TestMergeWithoutSource(t *testing.T) {
	_, err := Merge(&testTarget{history: NewHistory(Blank(1, 1))}, 800, 600)
	if !errors.Is(err, studioimage.ErrDecode) {
		t.Errorf("Merge() error = %v, want ErrDecode", err)
	}
}

func TestBrushState(t *testing.T) {
	b := NewBrushState(ToolPaint, 100)
	if b.Size() != MaxBrushSize {
		t.Errorf("size = %d, want clamp to %d", b.Size(), MaxBrushSize)
	}
	if got := b.AdjustByWheel(1); got != MaxBrushSize {
		t.Errorf("AdjustByWheel(+) at max = %d", got)
	}
	b.SetSize(1)
	if got := b.AdjustByWheel(-1); got != MinBrushSize {
		t.Errorf("AdjustByWheel(-) at min = %d", got)
	}
	if got := b.AdjustByWheel(3); got != 2 {
		t.Errorf("AdjustByWheel(+) = %d, want 2", got)
	}

	for in, want := range map[string]Tool{"paint": ToolPaint, "Eraser": ToolErase, "brush": ToolPaint} {
		if got, err := ParseTool(in); err != nil || got != want {
			t.Errorf("ParseTool(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseTool("lasso"); err == nil {
		t.Error("ParseTool(lasso) should fail")
	}
}
