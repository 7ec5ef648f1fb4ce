package ports

import (
	"github.com/ppronobis/video-transcription-tool/internal/models"
)

// TranscriptStore persists final transcripts. Write never overwrites an
// existing artifact; name collisions get a disambiguating suffix.
type TranscriptStore interface {
	Write(result models.TranscriptionResult) (path string, err error)

	// Prune removes older duplicate transcripts of the same source file,
	// keeping the newest. Returns kept and deleted counts.
	Prune() (kept int, deleted int, err error)
}

// FailureLog is the durable, append-only record of failed files. Appends
// are serialized; history is never rewritten. A later successful run marks
// a path resolved, which drops it from Outstanding without erasing history.
type FailureLog interface {
	Append(rec models.FailureRecord) error
	Resolve(path, runID string) error
	Outstanding() ([]models.FailureRecord, error)
}
