package ports

import (
	"context"
	"time"

	"github.com/ppronobis/video-transcription-tool/internal/models"
)

// RunRow is one archived batch run.
type RunRow struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"` // batch, retry
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// RunArchive keeps run history for the status API. Postgres-backed when a
// DSN is configured, a no-op otherwise; archive errors never fail a batch.
type RunArchive interface {
	BeginRun(ctx context.Context, id, mode string, total int) error
	RecordOutcome(ctx context.Context, runID string, out models.FileOutcome) error
	FinishRun(ctx context.Context, id string, summary models.BatchSummary) error

	GetRun(ctx context.Context, id string) (*RunRow, error)
	ListOutcomes(ctx context.Context, runID string) ([]models.FileOutcome, error)
}
