package app

import (
	goimage "image"
	"sync"

	"garment-studio/internal/image"
	"garment-studio/internal/mask"

	"github.com/google/uuid"
)

// Slot is one image in the editing session. It is the only owner of its
// mask history; the canvas engine edits that history in place while bound.
type Slot struct {
	ID    uuid.UUID
	Name  string
	Layer *image.Layer

	mu         sync.RWMutex
	annotation string
	history    *mask.History
}

func newSlot(layer *image.Layer, floor goimage.Point, historyLimit int) *Slot {
	h := mask.NewHistory(mask.Blank(floor.X, floor.Y))
	h.SetLimit(historyLimit)
	return &Slot{
		ID:      uuid.New(),
		Name:    layer.Name,
		Layer:   layer,
		history: h,
	}
}

// Source returns the decoded source pixels.
func (s *Slot) Source() goimage.Image {
	if s == nil || s.Layer == nil {
		return nil
	}
	return s.Layer.Image
}

// History returns the slot's mask history.
func (s *Slot) History() *mask.History {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history
}

// Annotation returns the free-text edit instruction.
func (s *Slot) Annotation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.annotation
}

// HasDrawings reports whether the history cursor is past the blank floor.
func (s *Slot) HasDrawings() bool {
	return s.History().HasDrawings()
}

func (s *Slot) setAnnotation(text string) {
	s.mu.Lock()
	s.annotation = text
	s.mu.Unlock()
}

func (s *Slot) setHistory(h *mask.History) {
	s.mu.Lock()
	s.history = h
	s.mu.Unlock()
}
