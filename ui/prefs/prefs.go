// Package prefs provides JSON-based UI preferences that are not part of the
// user-edited config file: last brush, last directory, window size.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"garment-studio/internal/config"
	"garment-studio/internal/mask"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/storage"
)

const prefsFile = "preferences.json"

// Preference keys.
const (
	KeyBrushTool    = "brush.tool"
	KeyBrushSize    = "brush.size"
	KeyLastDir      = "dialog.lastDir"
	KeyWindowWidth  = "window.width"
	KeyWindowHeight = "window.height"
)

// Prefs stores preferences as a key-value map.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// Load reads preferences from the garment-studio config directory.
// Returns empty Prefs if the file doesn't exist.
func Load() *Prefs {
	dir, err := config.Dir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config", config.AppName)
	}
	return LoadFrom(filepath.Join(dir, prefsFile))
}

// LoadFrom reads preferences from path.
func LoadFrom(path string) *Prefs {
	p := &Prefs{
		values: make(map[string]interface{}),
		path:   path,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(data, &p.values)
	return p
}

// Path returns the file the preferences are saved to.
func (p *Prefs) Path() string {
	return p.path
}

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// FloatWithFallback returns a float64 preference, or fallback if not set.
func (p *Prefs) FloatWithFallback(key string, fallback float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return fallback
}

// SetFloat sets a float64 preference.
func (p *Prefs) SetFloat(key string, value float64) {
	p.set(key, value)
}

// String returns a string preference, or "" if not set.
func (p *Prefs) String(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.values[key].(string); ok {
		return s
	}
	return ""
}

// SetString sets a string preference.
func (p *Prefs) SetString(key, value string) {
	p.set(key, value)
}

func (p *Prefs) set(key string, value interface{}) {
	p.mu.Lock()
	p.values[key] = value
	p.mu.Unlock()
}

// BrushTool returns the saved tool, or fallback when unset or unknown.
func (p *Prefs) BrushTool(fallback mask.Tool) mask.Tool {
	s := p.String(KeyBrushTool)
	if s == "" {
		return fallback
	}
	t, err := mask.ParseTool(s)
	if err != nil {
		return fallback
	}
	return t
}

// SetBrushTool records the selected tool.
func (p *Prefs) SetBrushTool(t mask.Tool) {
	p.SetString(KeyBrushTool, t.String())
}

// BrushSize returns the saved brush size clamped to the valid range, or
// fallback when unset.
func (p *Prefs) BrushSize(fallback int) int {
	v := p.FloatWithFallback(KeyBrushSize, float64(fallback))
	return mask.ClampBrushSize(int(v))
}

// SetBrushSize records the brush size.
func (p *Prefs) SetBrushSize(size int) {
	p.SetFloat(KeyBrushSize, float64(mask.ClampBrushSize(size)))
}

// LastDir returns the last directory used in a file dialog if it still
// exists.
func (p *Prefs) LastDir() string {
	dir := p.String(KeyLastDir)
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}

// SetLastDir records the directory of a file picked in a dialog.
func (p *Prefs) SetLastDir(path string) {
	if path == "" {
		return
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		path = filepath.Dir(path)
	}
	p.SetString(KeyLastDir, path)
}

// LastDirURI returns LastDir as a file dialog location, or nil.
func (p *Prefs) LastDirURI() fyne.ListableURI {
	dir := p.LastDir()
	if dir == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(dir))
	if err != nil {
		return nil
	}
	return listable
}
