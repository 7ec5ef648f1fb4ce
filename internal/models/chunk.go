package models

import (
	"os"

	"go.uber.org/multierr"
)

// Chunk is one time-bounded slice of a media file, sized to fit a single
// transcription request.
type Chunk struct {
	Index    int     `json:"index"` // 0-based, defines reassembly order
	Start    float64 `json:"start_seconds"`
	Duration float64 `json:"duration_seconds"`
	Size     int64   `json:"size_bytes"`
	Path     string  `json:"path"` // audio artifact submitted to the API
}

// End returns the chunk's end offset on the file timeline.
func (c Chunk) End() float64 {
	return c.Start + c.Duration
}

// ChunkSet holds every chunk produced for one file. Split chunks live in
// one temporary directory owned by the set; a single-chunk set aliases the
// source file directly and owns nothing.
type ChunkSet struct {
	File    MediaFile
	Chunks  []Chunk
	TempDir string // empty when the set aliases the source file
}

// Release removes all chunk artifacts at once. Safe to call twice; never
// touches the source file.
func (s *ChunkSet) Release() error {
	if s == nil || s.TempDir == "" {
		return nil
	}

	var err error
	for _, c := range s.Chunks {
		if c.Path == s.File.Path {
			continue
		}
		if rmErr := os.Remove(c.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, rmErr)
		}
	}
	if rmErr := os.RemoveAll(s.TempDir); rmErr != nil {
		err = multierr.Append(err, rmErr)
	}

	s.TempDir = ""
	return err
}
