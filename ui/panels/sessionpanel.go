// Package panels provides the side panels of the main window.
package panels

import (
	"fmt"
	"path/filepath"

	"garment-studio/internal/app"
	studioimage "garment-studio/internal/image"
	"garment-studio/internal/mask"
	"garment-studio/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

const (
	toolLabelBrush  = "Brush"
	toolLabelEraser = "Eraser"
)

// SessionPanel lists the session's images and edits the active one: its
// annotation, the brush and the mask history.
type SessionPanel struct {
	state     *app.State
	prefs     *prefs.Prefs
	window    fyne.Window
	container fyne.CanvasObject

	list          *widget.List
	countLabel    *widget.Label
	addBtn        *widget.Button
	removeBtn     *widget.Button
	annotation    *widget.Entry
	toolRadio     *widget.RadioGroup
	sizeSlider    *widget.Slider
	sizeLabel     *widget.Label
	undoBtn       *widget.Button
	redoBtn       *widget.Button
	clearBtn      *widget.Button
	syncingEditor bool
}

// NewSessionPanel creates the session panel.
func NewSessionPanel(state *app.State, p *prefs.Prefs) *SessionPanel {
	sp := &SessionPanel{
		state: state,
		prefs: p,
	}

	sp.list = widget.NewList(
		func() int {
			return sp.state.Len()
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("Image")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			slots := sp.state.Slots()
			if id < len(slots) {
				obj.(*widget.Label).SetText(slotLabel(id, slots[id]))
			}
		},
	)
	sp.list.OnSelected = func(id widget.ListItemID) {
		if id == sp.state.ActiveIndex() {
			return
		}
		if err := sp.state.SwitchActive(id); err != nil {
			sp.showError(err)
		}
	}

	sp.countLabel = widget.NewLabel("")
	sp.addBtn = widget.NewButton("Add Image...", sp.onAddImage)
	sp.removeBtn = widget.NewButton("Remove", sp.onRemoveImage)

	sp.annotation = widget.NewMultiLineEntry()
	sp.annotation.SetPlaceHolder("Describe the change for this image")
	sp.annotation.Wrapping = fyne.TextWrapWord
	sp.annotation.SetMinRowsVisible(3)
	sp.annotation.OnChanged = func(text string) {
		if sp.syncingEditor {
			return
		}
		if err := sp.state.UpdateAnnotation(text); err != nil {
			logrus.WithError(err).Debug("Annotation not stored")
		}
	}

	brush := sp.state.Engine().Brush()
	sp.toolRadio = widget.NewRadioGroup([]string{toolLabelBrush, toolLabelEraser}, func(label string) {
		tool := mask.ToolPaint
		if label == toolLabelEraser {
			tool = mask.ToolErase
		}
		brush.SetTool(tool)
		sp.prefs.SetBrushTool(tool)
	})
	sp.toolRadio.Horizontal = true
	sp.toolRadio.Required = true

	sp.sizeLabel = widget.NewLabel("")
	sp.sizeSlider = widget.NewSlider(mask.MinBrushSize, mask.MaxBrushSize)
	sp.sizeSlider.Step = 1
	sp.sizeSlider.OnChanged = func(v float64) {
		size := brush.SetSize(int(v))
		sp.prefs.SetBrushSize(size)
		sp.sizeLabel.SetText(fmt.Sprintf("Size: %d px", size))
	}

	sp.undoBtn = widget.NewButton("Undo", func() { sp.maskOp(sp.state.Undo) })
	sp.redoBtn = widget.NewButton("Redo", func() { sp.maskOp(sp.state.Redo) })
	sp.clearBtn = widget.NewButton("Clear", func() {
		sp.maskOp(func() (bool, error) { return false, sp.state.ClearMask() })
	})

	sp.SetTool(brush.Tool())
	sp.SetBrushSize(brush.Size())

	imagesCard := widget.NewCard("Images", "", container.NewBorder(
		nil,
		container.NewVBox(sp.countLabel, container.NewGridWithColumns(2, sp.addBtn, sp.removeBtn)),
		nil, nil,
		sp.list,
	))
	editCard := widget.NewCard("Active Image", "", container.NewVBox(
		widget.NewLabel("Notes"),
		sp.annotation,
		widget.NewSeparator(),
		sp.toolRadio,
		sp.sizeLabel,
		sp.sizeSlider,
		container.NewGridWithColumns(3, sp.undoBtn, sp.redoBtn, sp.clearBtn),
	))

	sp.container = container.NewBorder(nil, editCard, nil, nil, imagesCard)

	sp.setupEventHandlers()
	sp.sync()
	return sp
}

// Container returns the panel container.
func (sp *SessionPanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SessionPanel) SetWindow(w fyne.Window) {
	sp.window = w
}

// SetTool selects tool without re-recording it.
func (sp *SessionPanel) SetTool(tool mask.Tool) {
	if tool == mask.ToolErase {
		sp.toolRadio.SetSelected(toolLabelEraser)
	} else {
		sp.toolRadio.SetSelected(toolLabelBrush)
	}
}

// SetBrushSize moves the size slider, e.g. after a wheel change on the canvas.
func (sp *SessionPanel) SetBrushSize(size int) {
	sp.sizeSlider.SetValue(float64(size))
	sp.sizeLabel.SetText(fmt.Sprintf("Size: %d px", size))
}

func (sp *SessionPanel) setupEventHandlers() {
	resync := func(interface{}) { sp.sync() }
	sp.state.On(app.EventSlotAdded, resync)
	sp.state.On(app.EventSlotRemoved, resync)
	sp.state.On(app.EventActiveChanged, resync)
	sp.state.On(app.EventSessionReset, resync)
	sp.state.On(app.EventProjectLoaded, resync)
	sp.state.On(app.EventMaskChanged, func(interface{}) {
		sp.list.Refresh()
		sp.syncHistoryButtons()
	})
}

// sync refreshes every control from the session.
func (sp *SessionPanel) sync() {
	n, limit := sp.state.Len(), sp.state.MaxSlots()
	sp.countLabel.SetText(fmt.Sprintf("%d / %d images", n, limit))
	if n >= limit {
		sp.addBtn.Disable()
	} else {
		sp.addBtn.Enable()
	}

	sp.list.Refresh()
	text := ""
	if active := sp.state.Active(); active == nil {
		sp.list.UnselectAll()
		sp.removeBtn.Disable()
		sp.annotation.Disable()
	} else {
		sp.list.Select(sp.state.ActiveIndex())
		sp.removeBtn.Enable()
		sp.annotation.Enable()
		text = active.Annotation()
	}

	sp.syncingEditor = true
	sp.annotation.SetText(text)
	sp.syncingEditor = false

	sp.syncHistoryButtons()
}

func (sp *SessionPanel) syncHistoryButtons() {
	active := sp.state.Active()
	if active == nil {
		sp.undoBtn.Disable()
		sp.redoBtn.Disable()
		sp.clearBtn.Disable()
		return
	}
	h := active.History()
	setEnabled(sp.undoBtn, h.CanUndo())
	setEnabled(sp.redoBtn, h.CanRedo())
	setEnabled(sp.clearBtn, h.HasDrawings())
}

func (sp *SessionPanel) maskOp(op func() (bool, error)) {
	if _, err := op(); err != nil {
		sp.showError(err)
	}
}

func (sp *SessionPanel) onAddImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		sp.prefs.SetLastDir(path)
		if _, err := sp.state.AddImage(path); err != nil {
			sp.showError(err)
		}
	}, sp.window)
	fd.SetFilter(storage.NewExtensionFileFilter(studioimage.SupportedFormats()))
	if loc := sp.prefs.LastDirURI(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (sp *SessionPanel) onRemoveImage() {
	idx := sp.state.ActiveIndex()
	if idx < 0 {
		return
	}
	slot := sp.state.Active()
	remove := func() {
		if err := sp.state.RemoveImage(idx); err != nil {
			sp.showError(err)
		}
	}
	if sp.window == nil || !slot.HasDrawings() {
		remove()
		return
	}
	dialog.ShowConfirm("Remove Image",
		fmt.Sprintf("Remove %s and its mask?", slot.Name),
		func(ok bool) {
			if ok {
				remove()
			}
		}, sp.window)
}

func (sp *SessionPanel) showError(err error) {
	logrus.WithError(err).Warn("Session action failed")
	if sp.window != nil {
		dialog.ShowError(err, sp.window)
	}
}

func slotLabel(i int, s *app.Slot) string {
	label := fmt.Sprintf("%d. %s", i+1, filepath.Base(s.Name))
	if s.HasDrawings() {
		label += "  ●"
	}
	return label
}

func setEnabled(b *widget.Button, enabled bool) {
	if enabled {
		b.Enable()
	} else {
		b.Disable()
	}
}
