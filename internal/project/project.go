// Package project provides session project file handling and persistence.
package project

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	studioimage "garment-studio/internal/image"
)

// Extension is the file extension used for session project files.
const Extension = ".gsproj"

// CurrentVersion is written into every saved project.
const CurrentVersion = 1

// File represents a saved editing session (.gsproj).
type File struct {
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Active is the index of the slot that was being edited, -1 when empty.
	Active int     `json:"active"`
	Slots  []Entry `json:"slots"`
}

// Entry is one image slot in a project file.
type Entry struct {
	Name       string `json:"name"`
	ImagePath  string `json:"image"`
	Annotation string `json:"annotation,omitempty"`

	// Mask is the overlay at the slot's history cursor, base64 PNG.
	// Empty when the slot has no drawings.
	Mask string `json:"mask,omitempty"`
}

// New creates an empty project file.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:  CurrentVersion,
		Name:     name,
		Created:  now,
		Modified: now,
		Active:   -1,
	}
}

// Load loads a project from a .gsproj file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", path, err)
	}
	if proj.Version > CurrentVersion {
		return nil, fmt.Errorf("project %s has unsupported version %d", path, proj.Version)
	}
	if proj.Active >= len(proj.Slots) {
		proj.Active = len(proj.Slots) - 1
	}

	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// AddSlot appends an entry, storing the image path relative to the project
// file when possible.
func (p *File) AddSlot(projectPath string, e Entry) {
	if rel, err := filepath.Rel(filepath.Dir(projectPath), e.ImagePath); err == nil && e.ImagePath != "" {
		e.ImagePath = rel
	}
	p.Slots = append(p.Slots, e)
}

// ImagePath returns the absolute path to the image of slot i.
func (p *File) ImagePath(projectPath string, i int) string {
	rel := p.Slots[i].ImagePath
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(filepath.Dir(projectPath), rel)
}

// EncodeMask returns img as a base64 PNG string.
func EncodeMask(img image.Image) (string, error) {
	data, err := studioimage.PNGBytes(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeMask parses a mask written by EncodeMask.
func DecodeMask(s string) (*image.RGBA, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: mask: %v", studioimage.ErrDecode, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: mask: %v", studioimage.ErrDecode, err)
	}
	return studioimage.ToRGBA(img), nil
}
