package mask

import "sync"

// History is a linear undo/redo log of overlay snapshots for one image.
// Index 0 always holds the blank floor snapshot and is never removed, so the
// log is never empty and the cursor always points at a valid entry.
type History struct {
	mu        sync.RWMutex
	snapshots []Snapshot
	cursor    int
	limit     int
}

// NewHistory creates a history whose floor is the given blank snapshot.
func NewHistory(floor Snapshot) *History {
	return &History{snapshots: []Snapshot{floor}}
}

// SetLimit bounds the number of snapshots kept, including the floor.
// Zero or a value below 2 disables the bound.
func (h *History) SetLimit(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 2 {
		n = 0
	}
	h.limit = n
	h.trim()
}

// Commit discards any redo branch past the cursor, appends s and moves the
// cursor onto it.
func (h *History) Commit(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots = append(h.snapshots[:h.cursor+1], s)
	h.cursor = len(h.snapshots) - 1
	h.trim()
}

// trim shrinks the log to the limit without moving off the current
// snapshot: the redo branch goes first, then the oldest entries between the
// floor and the cursor.
func (h *History) trim() {
	if h.limit == 0 || len(h.snapshots) <= h.limit {
		return
	}
	if end := max(h.cursor+1, h.limit); end < len(h.snapshots) {
		clear(h.snapshots[end:])
		h.snapshots = h.snapshots[:end]
	}
	drop := len(h.snapshots) - h.limit
	if drop <= 0 {
		return
	}
	kept := make([]Snapshot, 0, h.limit)
	kept = append(kept, h.snapshots[0])
	kept = append(kept, h.snapshots[1+drop:]...)
	h.snapshots = kept
	h.cursor -= drop
}

// Undo moves the cursor back one step. It is a no-op at the floor.
func (h *History) Undo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return h.snapshots[0], false
	}
	h.cursor--
	return h.snapshots[h.cursor], true
}

// Redo moves the cursor forward one step. It is a no-op at the newest entry.
func (h *History) Redo() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == len(h.snapshots)-1 {
		return h.snapshots[h.cursor], false
	}
	h.cursor++
	return h.snapshots[h.cursor], true
}

// Current returns the snapshot under the cursor.
func (h *History) Current() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshots[h.cursor]
}

// Floor returns the blank snapshot at index 0.
func (h *History) Floor() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshots[0]
}

// Cursor returns the current index.
func (h *History) Cursor() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor
}

// Len returns the number of snapshots, always at least 1.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snapshots)
}

// CanUndo reports whether Undo would move the cursor.
func (h *History) CanUndo() bool {
	return h.Cursor() > 0
}

// CanRedo reports whether Redo would move the cursor.
func (h *History) CanRedo() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor < len(h.snapshots)-1
}

// HasDrawings reports whether the cursor is above the blank floor.
func (h *History) HasDrawings() bool {
	return h.Cursor() > 0
}
