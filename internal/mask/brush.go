package mask

import (
	"fmt"
	"image/color"
	"strings"
	"sync"

	"garment-studio/pkg/colorutil"
)

// Tool selects what a stroke does to the overlay.
type Tool int

const (
	ToolPaint Tool = iota // Marks the overlay with the brush color
	ToolErase             // Removes overlay marks (destination-out)
)

func (t Tool) String() string {
	switch t {
	case ToolPaint:
		return "paint"
	case ToolErase:
		return "erase"
	default:
		return "unknown"
	}
}

// ParseTool parses "paint"/"brush" or "erase"/"eraser".
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paint", "brush", "":
		return ToolPaint, nil
	case "erase", "eraser":
		return ToolErase, nil
	default:
		return ToolPaint, fmt.Errorf("unknown tool %q", s)
	}
}

// Brush diameter bounds, in logical pixels.
const (
	MinBrushSize     = 1
	MaxBrushSize     = 50
	DefaultBrushSize = 10
)

// ClampBrushSize limits size to [MinBrushSize, MaxBrushSize].
func ClampBrushSize(size int) int {
	if size < MinBrushSize {
		return MinBrushSize
	}
	if size > MaxBrushSize {
		return MaxBrushSize
	}
	return size
}

// BrushState is the session-wide tool configuration. The engine reads it at
// the start of every stroke, so changes never affect a stroke in progress.
type BrushState struct {
	mu    sync.RWMutex
	tool  Tool
	size  int
	color color.RGBA
}

// NewBrushState creates a brush with the given tool and size.
func NewBrushState(tool Tool, size int) *BrushState {
	return &BrushState{
		tool:  tool,
		size:  ClampBrushSize(size),
		color: colorutil.MaskRed,
	}
}

// Tool returns the active tool.
func (b *BrushState) Tool() Tool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tool
}

// SetTool changes the active tool.
func (b *BrushState) SetTool(t Tool) {
	b.mu.Lock()
	b.tool = t
	b.mu.Unlock()
}

// Size returns the brush diameter in logical pixels.
func (b *BrushState) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// SetSize sets the brush diameter, clamped to the allowed range.
func (b *BrushState) SetSize(size int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size = ClampBrushSize(size)
	return b.size
}

// Color returns the marking color used by the paint tool.
func (b *BrushState) Color() color.RGBA {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.color
}

// SetColor changes the marking color.
func (b *BrushState) SetColor(c color.RGBA) {
	b.mu.Lock()
	b.color = c
	b.mu.Unlock()
}

// AdjustByWheel grows the brush for a positive wheel delta and shrinks it for
// a negative one, one step per call. Returns the new size.
func (b *BrushState) AdjustByWheel(dy float32) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case dy > 0:
		b.size = ClampBrushSize(b.size + 1)
	case dy < 0:
		b.size = ClampBrushSize(b.size - 1)
	}
	return b.size
}

func (b *BrushState) snapshot() (Tool, int, color.RGBA) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tool, b.size, b.color
}
