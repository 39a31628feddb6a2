package panels

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"garment-studio/internal/app"
	"garment-studio/internal/submit"
	"garment-studio/internal/taskstore"
	"garment-studio/internal/tenant"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

const historyLimit = 20

// ResultsPanel submits the session and shows progress, result images and
// the local submission history.
type ResultsPanel struct {
	state     *app.State
	orch      *submit.Orchestrator
	store     taskstore.Store
	window    fyne.Window
	container fyne.CanvasObject

	submitBtn   *widget.Button
	cancelBtn   *widget.Button
	progress    *widget.ProgressBar
	statusLabel *widget.Label
	outputs     *fyne.Container
	history     *widget.List
	records     []*taskstore.Record

	onAuthRequired func()
}

// NewResultsPanel creates the results panel. store may be nil.
func NewResultsPanel(state *app.State, orch *submit.Orchestrator, store taskstore.Store) *ResultsPanel {
	rp := &ResultsPanel{
		state: state,
		orch:  orch,
		store: store,
	}

	rp.submitBtn = widget.NewButton("Submit", rp.onSubmit)
	rp.submitBtn.Importance = widget.HighImportance
	rp.cancelBtn = widget.NewButton("Cancel", rp.orch.Cancel)
	rp.cancelBtn.Disable()

	rp.progress = widget.NewProgressBar()
	rp.progress.Max = 100
	rp.statusLabel = widget.NewLabel("Idle")
	rp.statusLabel.Wrapping = fyne.TextWrapWord
	rp.outputs = container.NewVBox()

	rp.history = widget.NewList(
		func() int {
			return len(rp.records)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("Submission")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < len(rp.records) {
				obj.(*widget.Label).SetText(recordLabel(rp.records[id]))
			}
		},
	)
	rp.history.OnSelected = func(id widget.ListItemID) {
		if id < len(rp.records) {
			rp.showOutputs(rp.records[id].Outputs)
		}
	}

	rp.orch.OnUpdate(rp.onUpdate)

	submitCard := widget.NewCard("Submission", "", container.NewVBox(
		container.NewGridWithColumns(2, rp.submitBtn, rp.cancelBtn),
		rp.progress,
		rp.statusLabel,
	))
	resultsCard := widget.NewCard("Results", "", rp.outputs)
	historyCard := widget.NewCard("History", "", rp.history)

	rp.container = container.NewBorder(
		container.NewVBox(submitCard, resultsCard),
		nil, nil, nil,
		historyCard,
	)

	rp.RefreshHistory()
	return rp
}

// Container returns the panel container.
func (rp *ResultsPanel) Container() fyne.CanvasObject {
	return rp.container
}

// SetWindow sets the parent window for dialogs and the clipboard.
func (rp *ResultsPanel) SetWindow(w fyne.Window) {
	rp.window = w
}

// OnAuthRequired registers a callback for submissions refused for lack of a
// valid token.
func (rp *ResultsPanel) OnAuthRequired(callback func()) {
	rp.onAuthRequired = callback
}

// RefreshHistory reloads the newest records from the store.
func (rp *ResultsPanel) RefreshHistory() {
	if rp.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	records, err := rp.store.List(ctx, historyLimit)
	if err != nil {
		logrus.WithError(err).Warn("Failed to list submissions")
		return
	}
	rp.records = records
	rp.history.Refresh()
}

// onSubmit flattens the session immediately, then runs the job in the
// background so later edits do not reach it.
func (rp *ResultsPanel) onSubmit() {
	job, err := rp.orch.Prepare(rp.state.Sources())
	if err != nil {
		rp.showFailure(err)
		return
	}
	if job.Skipped > 0 {
		rp.statusLabel.SetText(fmt.Sprintf("%d image(s) beyond the first %d will not be sent.", job.Skipped, submit.MaxImages))
	}

	rp.outputs.RemoveAll()
	rp.progress.SetValue(0)
	rp.submitBtn.Disable()
	rp.cancelBtn.Enable()

	go func() {
		res, err := rp.orch.Run(context.Background(), job)
		if errors.Is(err, context.Canceled) && rp.orch.Phase().Busy() {
			// Superseded by a newer run, which owns the controls now.
			return
		}
		rp.submitBtn.Enable()
		rp.cancelBtn.Disable()
		rp.RefreshHistory()
		if err != nil {
			rp.showFailure(err)
			return
		}
		rp.showOutputs(res.Outputs)
	}()
}

func (rp *ResultsPanel) onUpdate(u submit.Update) {
	rp.statusLabel.SetText(StatusText(u))
	rp.progress.SetValue(u.Progress)
	rp.state.Emit(app.EventSubmissionChanged, u)
}

func (rp *ResultsPanel) showFailure(err error) {
	msg := submit.UserMessage(err)
	rp.statusLabel.SetText(msg)
	logrus.WithError(err).Warn("Submission failed")
	if isAuthError(err) && rp.onAuthRequired != nil {
		rp.onAuthRequired()
	}
}

// showOutputs lists result links with a copy button each.
func (rp *ResultsPanel) showOutputs(outputs []string) {
	rp.outputs.RemoveAll()
	if len(outputs) == 0 {
		rp.outputs.Add(widget.NewLabel("No results"))
		return
	}
	for i, out := range outputs {
		out := out
		label := fmt.Sprintf("Result %d", i+1)
		var link fyne.CanvasObject = widget.NewLabel(out)
		if u, err := url.Parse(out); err == nil && u.Scheme != "" {
			link = widget.NewHyperlink(label, u)
		}
		copyBtn := widget.NewButton("Copy", func() {
			if rp.window != nil {
				rp.window.Clipboard().SetContent(out)
			}
		})
		rp.outputs.Add(container.NewBorder(nil, nil, nil, copyBtn, link))
	}
	rp.outputs.Refresh()
}

// StatusText renders an update as the one-line status shown under the
// progress bar.
func StatusText(u submit.Update) string {
	switch u.Phase {
	case submit.PhaseSubmitting:
		return "Uploading images..."
	case submit.PhasePolling:
		if u.Attempt == 0 {
			return fmt.Sprintf("Task %s accepted", u.TaskID)
		}
		text := fmt.Sprintf("Processing... %.0f%% (check %d)", u.Progress, u.Attempt)
		if u.Message != "" {
			text += ": " + u.Message
		}
		return text
	case submit.PhaseSucceeded:
		return fmt.Sprintf("Done: %d result(s)", len(u.Outputs))
	case submit.PhaseFailed, submit.PhaseTimedOut:
		if u.Message != "" {
			return u.Message
		}
		return submit.UserMessage(u.Err)
	default:
		return "Idle"
	}
}

func recordLabel(r *taskstore.Record) string {
	prompt := []rune(strings.TrimSpace(r.Prompt))
	if len(prompt) > 32 {
		prompt = append(prompt[:31], '…')
	}
	return fmt.Sprintf("%s  %s  %s", r.CreatedAt.Local().Format("Jan 02 15:04"), strings.ToLower(r.Phase), string(prompt))
}

func isAuthError(err error) bool {
	return errors.Is(err, tenant.ErrAuthRequired) ||
		errors.Is(err, tenant.ErrTokenExpired) ||
		errors.Is(err, tenant.ErrUnauthorized)
}
