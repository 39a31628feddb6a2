package panels

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"garment-studio/internal/app"
	"garment-studio/internal/config"
	"garment-studio/internal/mask"
	"garment-studio/internal/submit"
	"garment-studio/internal/taskstore"
	"garment-studio/internal/taskstore/memory"
	"garment-studio/internal/tenant"
	"garment-studio/pkg/geometry"
	"garment-studio/ui/prefs"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"
)

func newState(t *testing.T) *app.State {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)
	w := test.NewWindow(widget.NewLabel(""))
	t.Cleanup(w.Close)
	return app.NewState(mask.NewEngine(nil), config.SessionConfig{MaxSlots: 4, HistoryLimit: 50})
}

func addImage(t *testing.T, s *app.State) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 60, 40))); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddImageFromReader("shirt.png", &buf); err != nil {
		t.Fatalf("AddImageFromReader() error = %v", err)
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		name string
		u    submit.Update
		want string
	}{
		{"idle", submit.Update{}, "Idle"},
		{"submitting", submit.Update{Phase: submit.PhaseSubmitting}, "Uploading images..."},
		{"accepted", submit.Update{Phase: submit.PhasePolling, TaskID: "t1"}, "Task t1 accepted"},
		{"polling", submit.Update{Phase: submit.PhasePolling, Attempt: 3, Progress: 42}, "Processing... 42% (check 3)"},
		{"polling message", submit.Update{Phase: submit.PhasePolling, Attempt: 1, Progress: 5, Message: "queued"}, "Processing... 5% (check 1): queued"},
		{"done", submit.Update{Phase: submit.PhaseSucceeded, Outputs: []string{"a", "b"}}, "Done: 2 result(s)"},
		{"failed", submit.Update{Phase: submit.PhaseFailed, Message: "Processing failed: bad"}, "Processing failed: bad"},
		{"timeout", submit.Update{Phase: submit.PhaseTimedOut, Err: submit.ErrTimeout}, submit.UserMessage(submit.ErrTimeout)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusText(tt.u); got != tt.want {
				t.Errorf("StatusText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordLabel(t *testing.T) {
	r := &taskstore.Record{
		Prompt:    strings.Repeat("é", 40),
		Phase:     "SUCCEEDED",
		CreatedAt: time.Date(2026, 3, 4, 10, 30, 0, 0, time.Local),
	}
	got := recordLabel(r)
	if !strings.Contains(got, "succeeded") {
		t.Errorf("label %q missing phase", got)
	}
	if !strings.HasSuffix(got, strings.Repeat("é", 31)+"…") {
		t.Errorf("label %q not truncated on rune boundary", got)
	}
}

func TestSessionPanelTracksState(t *testing.T) {
	s := newState(t)
	sp := NewSessionPanel(s, prefs.LoadFrom(filepath.Join(t.TempDir(), "prefs.json")))

	if got := sp.countLabel.Text; got != "0 / 4 images" {
		t.Errorf("count = %q", got)
	}
	if !sp.removeBtn.Disabled() || !sp.undoBtn.Disabled() {
		t.Error("controls enabled on an empty session")
	}

	addImage(t, s)
	if got := sp.countLabel.Text; got != "1 / 4 images" {
		t.Errorf("count = %q", got)
	}
	if sp.removeBtn.Disabled() {
		t.Error("remove disabled with an active image")
	}

	test.Type(sp.annotation, "shorter sleeves")
	if got := s.Active().Annotation(); got != "shorter sleeves" {
		t.Errorf("annotation = %q", got)
	}

	if err := s.Engine().BeginStroke(geometry.NewPoint2D(10, 10)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.EndStroke(); err != nil {
		t.Fatal(err)
	}
	if sp.undoBtn.Disabled() || sp.clearBtn.Disabled() {
		t.Error("undo/clear disabled after a stroke")
	}

	addImage(t, s)
	if got := sp.annotation.Text; got != "" {
		t.Errorf("new slot shows annotation %q", got)
	}
	if err := s.SwitchActive(0); err != nil {
		t.Fatal(err)
	}
	if got := sp.annotation.Text; got != "shorter sleeves" {
		t.Errorf("annotation after switch = %q", got)
	}
	if got := s.Slots()[1].Annotation(); got != "" {
		t.Errorf("second slot picked up annotation %q", got)
	}
}

func TestSessionPanelBrush(t *testing.T) {
	s := newState(t)
	p := prefs.LoadFrom(filepath.Join(t.TempDir(), "prefs.json"))
	sp := NewSessionPanel(s, p)

	sp.toolRadio.SetSelected(toolLabelEraser)
	if got := s.Engine().Brush().Tool(); got != mask.ToolErase {
		t.Errorf("brush tool = %v", got)
	}
	if got := p.BrushTool(mask.ToolPaint); got != mask.ToolErase {
		t.Errorf("saved tool = %v", got)
	}

	sp.sizeSlider.SetValue(30)
	if got := s.Engine().Brush().Size(); got != 30 {
		t.Errorf("brush size = %d", got)
	}
	sp.SetBrushSize(12)
	if got := sp.sizeLabel.Text; got != "Size: 12 px" {
		t.Errorf("size label = %q", got)
	}
}

type refusingService struct{}

func (refusingService) Submit(context.Context, tenant.SubmitRequest) (*tenant.SubmitResponse, error) {
	return nil, tenant.ErrAuthRequired
}

func (refusingService) Status(context.Context, string) (*tenant.StatusResponse, error) {
	return nil, errors.New("unexpected status call")
}

func (refusingService) Complete(context.Context, string) ([]string, error) {
	return nil, errors.New("unexpected complete call")
}

func TestResultsPanelValidation(t *testing.T) {
	s := newState(t)
	orch := submit.New(refusingService{}, nil, submit.Options{RequirePrompt: true})
	rp := NewResultsPanel(s, orch, nil)

	test.Tap(rp.submitBtn)
	if got, want := rp.statusLabel.Text, submit.UserMessage(submit.ErrNoImages); got != want {
		t.Errorf("status = %q, want %q", got, want)
	}
	if rp.submitBtn.Disabled() {
		t.Error("submit stays disabled after a validation error")
	}
}

func TestResultsPanelAuthRequired(t *testing.T) {
	s := newState(t)
	addImage(t, s)
	if err := s.UpdateAnnotation("add a pocket"); err != nil {
		t.Fatal(err)
	}

	store := memory.NewStore()
	orch := submit.New(refusingService{}, store, submit.Options{RequirePrompt: true})
	rp := NewResultsPanel(s, orch, store)
	asked := make(chan struct{}, 1)
	rp.OnAuthRequired(func() { asked <- struct{}{} })

	test.Tap(rp.submitBtn)
	select {
	case <-asked:
	case <-time.After(5 * time.Second):
		t.Fatal("auth callback not called")
	}

	deadline := time.Now().Add(5 * time.Second)
	for rp.submitBtn.Disabled() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rp.submitBtn.Disabled() {
		t.Error("submit not re-enabled after failure")
	}
}
