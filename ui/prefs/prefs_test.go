package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"garment-studio/internal/mask"
)

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", prefsFile)
	p := LoadFrom(path)
	p.SetBrushTool(mask.ToolErase)
	p.SetBrushSize(25)
	p.SetFloat(KeyWindowWidth, 1280)
	if err := p.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	q := LoadFrom(path)
	if got := q.BrushTool(mask.ToolPaint); got != mask.ToolErase {
		t.Errorf("BrushTool = %v, want erase", got)
	}
	if got := q.BrushSize(10); got != 25 {
		t.Errorf("BrushSize = %d, want 25", got)
	}
	if got := q.FloatWithFallback(KeyWindowWidth, 0); got != 1280 {
		t.Errorf("window width = %v, want 1280", got)
	}
}

func TestFallbacks(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if got := p.BrushTool(mask.ToolPaint); got != mask.ToolPaint {
		t.Errorf("BrushTool = %v, want paint", got)
	}
	if got := p.BrushSize(12); got != 12 {
		t.Errorf("BrushSize = %d, want 12", got)
	}

	p.SetString(KeyBrushTool, "lasso")
	if got := p.BrushTool(mask.ToolErase); got != mask.ToolErase {
		t.Errorf("unknown tool should fall back, got %v", got)
	}
	p.SetFloat(KeyBrushSize, 500)
	if got := p.BrushSize(10); got != mask.MaxBrushSize {
		t.Errorf("BrushSize = %d, want clamp to %d", got, mask.MaxBrushSize)
	}
}

func TestLastDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shirt.png")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := LoadFrom(filepath.Join(dir, prefsFile))
	p.SetLastDir(file)
	if got := p.LastDir(); got != dir {
		t.Errorf("LastDir = %q, want %q", got, dir)
	}

	p.SetString(KeyLastDir, filepath.Join(dir, "gone"))
	if got := p.LastDir(); got != "" {
		t.Errorf("LastDir for missing dir = %q, want empty", got)
	}
}

func TestCorruptFileIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefsFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := LoadFrom(path)
	if got := p.String(KeyLastDir); got != "" {
		t.Errorf("String = %q, want empty", got)
	}
}
