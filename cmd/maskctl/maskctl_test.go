package main

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"garment-studio/internal/app"
	"garment-studio/internal/config"
	"garment-studio/internal/mask"
	"garment-studio/internal/submit"
	"garment-studio/internal/tenant"
)

func writeImage(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestAddImageArg(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "shirt.png")
	maskPath := filepath.Join(dir, "shirt-mask.png")
	writeImage(t, imgPath, 40, 30, color.RGBA{0, 0, 255, 255})
	writeImage(t, maskPath, 20, 15, color.RGBA{255, 0, 0, 255})

	state := app.NewState(mask.NewEngine(nil), config.SessionConfig{MaxSlots: 4})
	if err := addImageArg(state, imgPath); err != nil {
		t.Fatalf("addImageArg(image) error = %v", err)
	}
	if state.Active().HasDrawings() {
		t.Error("image without mask should have no drawings")
	}

	if err := addImageArg(state, imgPath+":"+maskPath); err != nil {
		t.Fatalf("addImageArg(image:mask) error = %v", err)
	}
	slot := state.Active()
	if !slot.HasDrawings() {
		t.Fatal("mask should be committed as a drawing")
	}
	if got := slot.History().Current().Bounds().Size(); got != image.Pt(40, 30) {
		t.Errorf("mask scaled to %v, want 40x30", got)
	}

	if err := addImageArg(state, filepath.Join(dir, "missing.png")); err == nil {
		t.Error("missing image should fail")
	}
}

func TestSplitImageArg(t *testing.T) {
	tests := []struct {
		arg      string
		wantImg  string
		wantMask string
		wantOK   bool
	}{
		{"shirt.png", "shirt.png", "", false},
		{"shirt.png:mask.png", "shirt.png", "mask.png", true},
		{`C:\photos\shirt.jpg`, `C:\photos\shirt.jpg`, "", false},
		{`C:\photos\shirt.JPG:D:\masks\m.png`, `C:\photos\shirt.JPG`, `D:\masks\m.png`, true},
		{"dir:v2/shirt.webp:mask.png", "dir:v2/shirt.webp", "mask.png", true},
		{"shirt.png:", "shirt.png", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			img, m, ok := splitImageArg(tt.arg)
			if img != tt.wantImg || m != tt.wantMask || ok != tt.wantOK {
				t.Errorf("splitImageArg(%q) = %q, %q, %v", tt.arg, img, m, ok)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer prompt", 8, "a longe…"},
		{"ab", 1, "a"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestUserError(t *testing.T) {
	remote := &tenant.RemoteError{Status: 400, Message: "bad prompt"}
	if got := userError(remote); got != "bad prompt (HTTP 400)" {
		t.Errorf("userError(remote) = %q", got)
	}
	if got := userError(submit.ErrNoImages); got != submit.UserMessage(submit.ErrNoImages) {
		t.Errorf("userError(ErrNoImages) = %q", got)
	}
	if got := userError(errors.New("plain")); got != "plain" {
		t.Errorf("userError(plain) = %q", got)
	}
}
