package models

import (
	"path/filepath"
	"strings"
	"time"
)

// SupportedExtensions lists the container formats the transcription API
// accepts. Anything else is rejected before processing starts.
var SupportedExtensions = map[string]bool{
	"mp3":  true,
	"mp4":  true,
	"mpeg": true,
	"mpga": true,
	"m4a":  true,
	"wav":  true,
	"webm": true,
}

// MediaFile is one input file, validated when its job starts and immutable
// afterwards.
type MediaFile struct {
	Path      string    `json:"path"` // absolute path, identity
	Size      int64     `json:"size_bytes"`
	Ext       string    `json:"ext"` // lowercase, no dot: "mp3", "wav", ...
	Duration  float64   `json:"duration_seconds"`
	CheckedAt time.Time `json:"checked_at"`
}

// Base returns the file name without directory.
func (m MediaFile) Base() string {
	return filepath.Base(m.Path)
}

// Stem returns the file name without directory and extension.
func (m MediaFile) Stem() string {
	base := m.Base()
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExtOf extracts the lowercase extension of path, without the dot.
func ExtOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
