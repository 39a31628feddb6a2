// Package app provides the editing session store, its events, the config
// reloader and the application theme.
package app

import (
	"errors"
	"fmt"
	goimage "image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"garment-studio/internal/config"
	"garment-studio/internal/image"
	"garment-studio/internal/mask"
	"garment-studio/internal/project"
	"garment-studio/internal/submit"

	"github.com/sirupsen/logrus"
)

var (
	// ErrCapacity is returned when adding an image to a full session.
	ErrCapacity = errors.New("session is full")
	// ErrIndexOutOfRange is returned for a slot index that does not exist.
	ErrIndexOutOfRange = errors.New("slot index out of range")
	// ErrEmpty is returned when removing from an empty session.
	ErrEmpty = errors.New("session has no images")
	// ErrNoActiveSlot is returned when an operation needs an active slot.
	ErrNoActiveSlot = errors.New("no active image")
)

// State holds the editing session: the ordered image slots, which one is
// active, and the canvas engine bound to it.
type State struct {
	mu sync.RWMutex

	// Project
	ProjectPath string
	Modified    bool

	engine       *mask.Engine
	maxSlots     int
	historyLimit int

	slots  []*Slot
	active int

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventSlotAdded EventType = iota
	EventSlotRemoved
	EventActiveChanged
	EventSessionReset
	EventAnnotationChanged
	EventMaskChanged
	EventSubmissionChanged
	EventProjectLoaded
	EventProjectSaved
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates an empty session editing through engine.
func NewState(engine *mask.Engine, cfg config.SessionConfig) *State {
	if engine == nil {
		engine = mask.NewEngine(nil)
	}
	s := &State{
		engine:    engine,
		active:    -1,
		listeners: make(map[EventType][]EventListener),
	}
	s.SetLimits(cfg)
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetLimits applies session limits. Existing slots beyond a lowered
// capacity are kept; only new additions are refused.
func (s *State) SetLimits(cfg config.SessionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSlots = cfg.MaxSlots
	if s.maxSlots <= 0 {
		s.maxSlots = config.DefaultConfig().Session.MaxSlots
	}
	s.historyLimit = cfg.HistoryLimit
	for _, slot := range s.slots {
		slot.History().SetLimit(s.historyLimit)
	}
}

// Engine returns the canvas engine.
func (s *State) Engine() *mask.Engine {
	return s.engine
}

// MaxSlots returns the session capacity.
func (s *State) MaxSlots() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSlots
}

// Slots returns a copy of the slot list in order.
func (s *State) Slots() []*Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Len returns the number of slots.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// ActiveIndex returns the active slot index, -1 when the session is empty.
func (s *State) ActiveIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Active returns the active slot, or nil.
func (s *State) Active() *Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

func (s *State) activeLocked() *Slot {
	if s.active < 0 || s.active >= len(s.slots) {
		return nil
	}
	return s.slots[s.active]
}

// Path returns the project file the session was loaded from or saved to.
func (s *State) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ProjectPath
}

// IsModified reports whether the session changed since it was last saved
// or loaded.
func (s *State) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Modified
}

// SetModified marks the project as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// AddImage loads the image at path into a new slot and makes it active.
func (s *State) AddImage(path string) (*Slot, error) {
	if err := s.checkCapacity(); err != nil {
		return nil, err
	}
	layer, err := image.Load(path)
	if err != nil {
		return nil, err
	}
	return s.addLayer(layer)
}

// AddImageFromReader decodes r into a new slot and makes it active.
func (s *State) AddImageFromReader(name string, r io.Reader) (*Slot, error) {
	if err := s.checkCapacity(); err != nil {
		return nil, err
	}
	layer, err := image.Decode(name, r)
	if err != nil {
		return nil, err
	}
	return s.addLayer(layer)
}

func (s *State) checkCapacity() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.slots) >= s.maxSlots {
		return fmt.Errorf("%w: at most %d images", ErrCapacity, s.maxSlots)
	}
	return nil
}

func (s *State) addLayer(layer *image.Layer) (*Slot, error) {
	s.mu.Lock()
	// Re-check: decoding ran without the lock.
	if len(s.slots) >= s.maxSlots {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: at most %d images", ErrCapacity, s.maxSlots)
	}
	slot := newSlot(layer, s.engine.SurfaceFor(layer.Width(), layer.Height()), s.historyLimit)
	s.slots = append(s.slots, slot)
	s.active = len(s.slots) - 1
	s.engine.Bind(slot)
	s.Modified = true
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"slot":   slot.ID,
		"name":   slot.Name,
		"width":  layer.Width(),
		"height": layer.Height(),
	}).Info("Image added to session")

	s.Emit(EventSlotAdded, slot)
	s.Emit(EventActiveChanged, slot)
	return slot, nil
}

// SwitchActive makes slot index the edited image. The engine is rebound in
// the same critical section, so no stroke can land on the previous slot's
// surfaces after the switch returns.
func (s *State) SwitchActive(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.slots) {
		n := len(s.slots)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, n)
	}
	if index == s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = index
	slot := s.slots[index]
	s.engine.Bind(slot)
	s.mu.Unlock()

	logrus.WithField("slot", slot.ID).Debug("Active image switched")
	s.Emit(EventActiveChanged, slot)
	return nil
}

// RemoveImage deletes slot index. Removing the last remaining image resets
// the session.
func (s *State) RemoveImage(index int) error {
	s.mu.Lock()
	if len(s.slots) == 0 {
		s.mu.Unlock()
		return ErrEmpty
	}
	if index < 0 || index >= len(s.slots) {
		n := len(s.slots)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, n)
	}
	if len(s.slots) == 1 {
		s.mu.Unlock()
		s.Reset()
		return nil
	}

	removed := s.slots[index]
	s.slots = append(s.slots[:index:index], s.slots[index+1:]...)
	activeChanged := false
	switch {
	case index == s.active:
		if s.active >= len(s.slots) {
			s.active = len(s.slots) - 1
		}
		s.engine.Bind(s.slots[s.active])
		activeChanged = true
	case index < s.active:
		s.active--
	}
	active := s.activeLocked()
	s.Modified = true
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"slot": removed.ID, "index": index}).Info("Image removed from session")
	s.Emit(EventSlotRemoved, index)
	if activeChanged {
		s.Emit(EventActiveChanged, active)
	}
	return nil
}

// Reset clears every slot and the engine surfaces.
func (s *State) Reset() {
	s.mu.Lock()
	s.slots = nil
	s.active = -1
	s.ProjectPath = ""
	s.Modified = false
	s.engine.Bind(nil)
	s.mu.Unlock()

	logrus.Debug("Session reset")
	s.Emit(EventSessionReset, nil)
	s.Emit(EventActiveChanged, (*Slot)(nil))
}

// UpdateAnnotation replaces the active slot's annotation.
func (s *State) UpdateAnnotation(text string) error {
	s.mu.Lock()
	slot := s.activeLocked()
	if slot == nil {
		s.mu.Unlock()
		return ErrNoActiveSlot
	}
	slot.setAnnotation(text)
	s.Modified = true
	s.mu.Unlock()

	s.Emit(EventAnnotationChanged, slot)
	return nil
}

// UpdateMaskState replaces the active slot's history and rebinds the engine
// so the overlay shows the new cursor snapshot.
func (s *State) UpdateMaskState(h *mask.History) error {
	if h == nil {
		return fmt.Errorf("nil mask history")
	}
	s.mu.Lock()
	slot := s.activeLocked()
	if slot == nil {
		s.mu.Unlock()
		return ErrNoActiveSlot
	}
	h.SetLimit(s.historyLimit)
	slot.setHistory(h)
	s.engine.Bind(slot)
	s.Modified = true
	s.mu.Unlock()

	s.Emit(EventMaskChanged, slot)
	return nil
}

// EndStroke finishes the engine's stroke on the active slot.
func (s *State) EndStroke() (bool, error) {
	return s.maskOp(s.engine.EndStroke)
}

// Undo steps the active slot's mask back one snapshot.
func (s *State) Undo() (bool, error) {
	return s.maskOp(s.engine.Undo)
}

// Redo steps the active slot's mask forward one snapshot.
func (s *State) Redo() (bool, error) {
	return s.maskOp(s.engine.Redo)
}

// ClearMask commits a blank mask on the active slot.
func (s *State) ClearMask() error {
	_, err := s.maskOp(func() (bool, error) { return false, s.engine.Clear() })
	return err
}

func (s *State) maskOp(op func() (bool, error)) (bool, error) {
	s.mu.Lock()
	slot := s.activeLocked()
	if slot == nil {
		s.mu.Unlock()
		return false, ErrNoActiveSlot
	}
	has, err := op()
	if err == nil {
		s.Modified = true
	}
	s.mu.Unlock()

	if err != nil {
		return has, err
	}
	s.Emit(EventMaskChanged, slot)
	return has, nil
}

// LoadProject replaces the session with the slots saved at path.
func (s *State) LoadProject(path string) error {
	proj, err := project.Load(path)
	if err != nil {
		return err
	}

	s.mu.RLock()
	limit, capacity := s.historyLimit, s.maxSlots
	s.mu.RUnlock()

	if len(proj.Slots) > capacity {
		return fmt.Errorf("%w: project has %d images, limit is %d", ErrCapacity, len(proj.Slots), capacity)
	}

	slots := make([]*Slot, 0, len(proj.Slots))
	for i, entry := range proj.Slots {
		layer, err := image.Load(proj.ImagePath(path, i))
		if err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
		if entry.Name != "" {
			layer.Name = entry.Name
		}
		slot := newSlot(layer, s.engine.SurfaceFor(layer.Width(), layer.Height()), limit)
		slot.annotation = entry.Annotation
		if entry.Mask != "" {
			m, err := project.DecodeMask(entry.Mask)
			if err != nil {
				return fmt.Errorf("slot %d: %w", i, err)
			}
			b := m.Bounds()
			h := mask.NewHistory(mask.Blank(b.Dx(), b.Dy()))
			h.SetLimit(limit)
			h.Commit(mask.Capture(m))
			slot.history = h
		}
		slots = append(slots, slot)
	}

	s.mu.Lock()
	s.slots = slots
	s.active = proj.Active
	if s.active < 0 && len(slots) > 0 {
		s.active = 0
	}
	s.ProjectPath = path
	s.Modified = false
	active := s.activeLocked()
	if active != nil {
		s.engine.Bind(active)
	} else {
		s.engine.Bind(nil)
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"path": path, "slots": len(slots)}).Info("Project loaded")
	s.Emit(EventProjectLoaded, path)
	s.Emit(EventActiveChanged, active)
	return nil
}

// SaveProject writes the session to path. Images without a file on disk
// are written as PNGs into a sibling "<name>_images" directory.
func (s *State) SaveProject(path string) error {
	s.mu.RLock()
	slots := make([]*Slot, len(s.slots))
	copy(slots, s.slots)
	active := s.active
	s.mu.RUnlock()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	proj := project.New(name)
	proj.Active = active

	for _, slot := range slots {
		imgPath := slot.Layer.Path
		if imgPath == "" {
			p, err := writeSlotImage(path, slot)
			if err != nil {
				return err
			}
			imgPath = p
		}
		entry := project.Entry{
			Name:       slot.Name,
			ImagePath:  imgPath,
			Annotation: slot.Annotation(),
		}
		if slot.HasDrawings() {
			enc, err := project.EncodeMask(slot.History().Current().Image())
			if err != nil {
				return fmt.Errorf("encode mask for %s: %w", slot.Name, err)
			}
			entry.Mask = enc
		}
		proj.AddSlot(path, entry)
	}

	if err := proj.Save(path); err != nil {
		return err
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"path": path, "slots": len(slots)}).Info("Project saved")
	s.Emit(EventProjectSaved, path)
	return nil
}

func writeSlotImage(projectPath string, slot *Slot) (string, error) {
	base := strings.TrimSuffix(projectPath, filepath.Ext(projectPath))
	dir := base + "_images"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, slot.ID.String()+".png")
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	if err := image.EncodePNG(f, slot.Layer.Image); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	slot.Layer.Path = p
	return p, nil
}

// Sources returns the slots in order, ready for the orchestrator.
func (s *State) Sources() []submit.Source {
	slots := s.Slots()
	out := make([]submit.Source, len(slots))
	for i, slot := range slots {
		out[i] = slot
	}
	return out
}

// ActiveSize returns the active source dimensions, or the zero point.
func (s *State) ActiveSize() goimage.Point {
	slot := s.Active()
	if slot == nil {
		return goimage.Point{}
	}
	return goimage.Pt(slot.Layer.Width(), slot.Layer.Height())
}
