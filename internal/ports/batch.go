package ports

import (
	"context"
	"time"

	"github.com/ppronobis/video-transcription-tool/internal/models"
)

// ProgressEvent is one pipeline progress update, broadcast to status
// subscribers while a run is in flight.
type ProgressEvent struct {
	RunID       string           `json:"runId"`
	File        string           `json:"file"`
	State       models.JobState  `json:"state"`
	ChunkIndex  int              `json:"chunk,omitempty"`
	ChunksDone  int              `json:"chunksDone,omitempty"`
	ChunksTotal int              `json:"chunksTotal,omitempty"`
	Kind        models.ErrorKind `json:"kind,omitempty"`
	Message     string           `json:"message,omitempty"`
	At          time.Time        `json:"at"`
}

// BatchRunner drives a set of files end to end and reports a summary.
type BatchRunner interface {
	// Run processes every file in the list. One file's failure never
	// aborts the rest.
	Run(ctx context.Context, files []string) (models.BatchSummary, error)

	// RunFailed processes only files left outstanding in the failure log.
	RunFailed(ctx context.Context) (models.BatchSummary, error)

	// Events streams progress updates until the runner is closed.
	Events() <-chan ProgressEvent
}
