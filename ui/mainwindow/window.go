// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"path/filepath"
	"strings"

	"garment-studio/internal/app"
	"garment-studio/internal/mask"
	"garment-studio/internal/project"
	"garment-studio/internal/submit"
	"garment-studio/internal/taskstore"
	"garment-studio/internal/tenant"
	"garment-studio/internal/version"
	"garment-studio/ui/canvas"
	"garment-studio/ui/dialogs"
	"garment-studio/ui/panels"
	"garment-studio/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

const appTitle = "Garment Studio"

// Deps are the services the window drives.
type Deps struct {
	State  *app.State
	Orch   *submit.Orchestrator
	Store  taskstore.Store
	Tokens *tenant.FileTokenStore
	Prefs  *prefs.Prefs
}

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	orch  *submit.Orchestrator
	prefs *prefs.Prefs

	tokens       *tenant.FileTokenStore
	canvas       *canvas.MaskCanvas
	sessionPanel *panels.SessionPanel
	resultsPanel *panels.ResultsPanel
	statusBar    *widget.Label
}

// New creates the main window.
func New(fyneApp fyne.App, deps Deps) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  deps.State,
		orch:   deps.Orch,
		prefs:  deps.Prefs,
		tokens: deps.Tokens,
	}

	mw.setupUI(deps.Store)
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()

	w := mw.prefs.FloatWithFallback(prefs.KeyWindowWidth, 1280)
	h := mw.prefs.FloatWithFallback(prefs.KeyWindowHeight, 800)
	mw.Resize(fyne.NewSize(float32(w), float32(h)))
	mw.SetCloseIntercept(mw.onClose)
	mw.updateTitle()

	return mw
}

// setupUI creates the main layout: session panel | canvas | results panel.
func (mw *MainWindow) setupUI(store taskstore.Store) {
	mw.canvas = canvas.NewMaskCanvas(mw.state)

	mw.sessionPanel = panels.NewSessionPanel(mw.state, mw.prefs)
	mw.sessionPanel.SetWindow(mw.Window)

	mw.resultsPanel = panels.NewResultsPanel(mw.state, mw.orch, store)
	mw.resultsPanel.SetWindow(mw.Window)
	mw.resultsPanel.OnAuthRequired(mw.onLogin)

	mw.canvas.OnBrushChange(func(size int) {
		mw.sessionPanel.SetBrushSize(size)
		mw.updateStatus(fmt.Sprintf("Brush size %d px", size))
	})
	mw.canvas.OnError(func(err error) {
		mw.updateStatus(err.Error())
	})

	mw.statusBar = widget.NewLabel("Ready")

	right := container.NewHSplit(mw.canvas, mw.resultsPanel.Container())
	right.SetOffset(0.72)
	split := container.NewHSplit(mw.sessionPanel.Container(), right)
	split.SetOffset(0.22)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil,
		nil,
		split,
	)
	mw.SetContent(content)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("New Session", mw.onNewSession),
		fyne.NewMenuItem("Open Project...", mw.onOpenProject),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Project", mw.onSaveProject),
		fyne.NewMenuItem("Save Project As...", mw.onSaveProjectAs),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", mw.onUndo),
		fyne.NewMenuItem("Redo", mw.onRedo),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Clear Mask", mw.onClearMask),
	)

	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Brush", func() { mw.selectTool(mask.ToolPaint) }),
		fyne.NewMenuItem("Eraser", func() { mw.selectTool(mask.ToolErase) }),
	)

	accountMenu := fyne.NewMenu("Account",
		fyne.NewMenuItem("Log In...", mw.onLogin),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, toolsMenu, accountMenu, helpMenu))
}

func (mw *MainWindow) setupShortcuts() {
	c := mw.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onUndo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault | fyne.KeyModifierShift},
		func(fyne.Shortcut) { mw.onRedo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onRedo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onSaveProject() })
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	retitle := func(interface{}) { mw.updateTitle() }
	for _, ev := range []app.EventType{
		app.EventSlotAdded, app.EventSlotRemoved, app.EventSessionReset,
		app.EventAnnotationChanged, app.EventMaskChanged, app.EventModified,
	} {
		mw.state.On(ev, retitle)
	}

	mw.state.On(app.EventProjectLoaded, func(data interface{}) {
		mw.updateTitle()
		if path, ok := data.(string); ok {
			mw.updateStatus("Project loaded: " + path)
		}
	})
	mw.state.On(app.EventProjectSaved, func(data interface{}) {
		mw.updateTitle()
		if path, ok := data.(string); ok {
			mw.updateStatus("Project saved: " + path)
		}
	})
	mw.state.On(app.EventActiveChanged, func(data interface{}) {
		if slot, ok := data.(*app.Slot); ok && slot != nil {
			size := mw.state.ActiveSize()
			mw.updateStatus(fmt.Sprintf("%s  %dx%d", slot.Name, size.X, size.Y))
		}
	})
	mw.state.On(app.EventSubmissionChanged, func(data interface{}) {
		if u, ok := data.(submit.Update); ok {
			mw.updateStatus(strings.ToLower(u.Phase.String()) + ": " + panels.StatusText(u))
		}
	})
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) updateTitle() {
	name := "Untitled"
	if p := mw.state.Path(); p != "" {
		name = filepath.Base(p)
	}
	title := appTitle + " - " + name
	if mw.state.IsModified() {
		title += " *"
	}
	mw.SetTitle(title)
}

// Menu action handlers

func (mw *MainWindow) onNewSession() {
	reset := func() {
		mw.orch.Cancel()
		mw.state.Reset()
		mw.updateTitle()
	}
	mw.confirmDiscard(reset)
}

func (mw *MainWindow) confirmDiscard(next func()) {
	if !mw.state.IsModified() {
		next()
		return
	}
	dialog.ShowConfirm("Unsaved Changes", "Discard the changes to this session?", func(ok bool) {
		if ok {
			next()
		}
	}, mw.Window)
}

func (mw *MainWindow) onOpenProject() {
	mw.confirmDiscard(func() {
		fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
			if err != nil || reader == nil {
				return
			}
			reader.Close()
			path := reader.URI().Path()
			mw.prefs.SetLastDir(path)
			if err := mw.state.LoadProject(path); err != nil {
				dialog.ShowError(err, mw.Window)
			}
		}, mw.Window)
		fd.SetFilter(storage.NewExtensionFileFilter([]string{project.Extension}))
		if loc := mw.prefs.LastDirURI(); loc != nil {
			fd.SetLocation(loc)
		}
		fd.Show()
	})
}

func (mw *MainWindow) onSaveProject() {
	path := mw.state.Path()
	if path == "" {
		mw.onSaveProjectAs()
		return
	}
	if err := mw.state.SaveProject(path); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onSaveProjectAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != project.Extension {
			path += project.Extension
		}
		mw.prefs.SetLastDir(path)
		if err := mw.state.SaveProject(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName("session" + project.Extension)
	if loc := mw.prefs.LastDirURI(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onUndo() {
	if has, err := mw.state.Undo(); err != nil {
		mw.updateStatus(err.Error())
	} else if !has {
		mw.updateStatus("Mask is blank")
	}
}

func (mw *MainWindow) onRedo() {
	if _, err := mw.state.Redo(); err != nil {
		mw.updateStatus(err.Error())
	}
}

func (mw *MainWindow) onClearMask() {
	if err := mw.state.ClearMask(); err != nil {
		mw.updateStatus(err.Error())
	}
}

func (mw *MainWindow) selectTool(tool mask.Tool) {
	mw.sessionPanel.SetTool(tool)
	mw.canvas.Refresh()
}

func (mw *MainWindow) onLogin() {
	dialogs.NewTokenDialog(mw.tokens, mw.Window, func() {
		mw.updateStatus("Logged in")
	}).Show()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Mark garment photos and send them for editing.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

// onClose saves window preferences and asks before dropping unsaved work.
func (mw *MainWindow) onClose() {
	mw.confirmDiscard(func() {
		size := mw.Canvas().Size()
		mw.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
		mw.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
		if err := mw.prefs.Save(); err != nil {
			logrus.WithError(err).Warn("Failed to save preferences")
		}
		mw.orch.Cancel()
		mw.Close()
	})
}
