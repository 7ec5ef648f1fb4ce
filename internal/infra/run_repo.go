package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// RunRepo archives batch runs and per-file outcomes in Postgres for the
// status API's run history.
type RunRepo struct {
	pool *pgxpool.Pool
}

var _ ports.RunArchive = (*RunRepo)(nil)

func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// EnsureSchema creates the archive tables when they do not exist yet. The
// tool owns its schema; there is no separate migration step.
func (r *RunRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transcription_runs (
			id         TEXT PRIMARY KEY,
			mode       TEXT NOT NULL,
			total      INT  NOT NULL,
			succeeded  INT  NOT NULL DEFAULT 0,
			failed     INT  NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at   TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS transcription_files (
			id              BIGSERIAL PRIMARY KEY,
			run_id          TEXT NOT NULL REFERENCES transcription_runs(id),
			file            TEXT NOT NULL,
			state           TEXT NOT NULL,
			kind            TEXT NOT NULL DEFAULT '',
			message         TEXT NOT NULL DEFAULT '',
			transcript_path TEXT NOT NULL DEFAULT '',
			chunks          INT  NOT NULL DEFAULT 0,
			duration_ms     BIGINT NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

func (r *RunRepo) BeginRun(ctx context.Context, id, mode string, total int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcription_runs (id, mode, total, started_at) VALUES ($1, $2, $3, $4)`,
		id, mode, total, time.Now())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepo) RecordOutcome(ctx context.Context, runID string, out models.FileOutcome) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcription_files (run_id, file, state, kind, message, transcript_path, chunks, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		runID, out.File, string(out.State), string(out.Kind), out.Message,
		out.TranscriptPath, out.Chunks, out.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (r *RunRepo) FinishRun(ctx context.Context, id string, summary models.BatchSummary) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transcription_runs SET succeeded = $2, failed = $3, ended_at = $4 WHERE id = $1`,
		id, summary.Succeeded, len(summary.Failed), time.Now())
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun returns the archived run, or nil when the ID is unknown.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*ports.RunRow, error) {
	var (
		row   ports.RunRow
		ended *time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, mode, total, succeeded, failed, started_at, ended_at
		 FROM transcription_runs WHERE id = $1`, id).
		Scan(&row.ID, &row.Mode, &row.Total, &row.Succeeded, &row.Failed, &row.StartedAt, &ended)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}
	if ended != nil {
		row.EndedAt = *ended
	}
	return &row, nil
}

func (r *RunRepo) ListOutcomes(ctx context.Context, runID string) ([]models.FileOutcome, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT file, state, kind, message, transcript_path, chunks, duration_ms
		 FROM transcription_files WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("select outcomes: %w", err)
	}
	defer rows.Close()

	var out []models.FileOutcome
	for rows.Next() {
		var (
			o          models.FileOutcome
			state      string
			kind       string
			durationMs int64
		)
		if err := rows.Scan(&o.File, &state, &kind, &o.Message, &o.TranscriptPath, &o.Chunks, &durationMs); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.State = models.JobState(state)
		o.Kind = models.ErrorKind(kind)
		o.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read outcomes: %w", err)
	}
	return out, nil
}

// NopArchive satisfies ports.RunArchive when no database is configured.
type NopArchive struct{}

var _ ports.RunArchive = NopArchive{}

func (NopArchive) BeginRun(context.Context, string, string, int) error { return nil }

func (NopArchive) RecordOutcome(context.Context, string, models.FileOutcome) error { return nil }

func (NopArchive) FinishRun(context.Context, string, models.BatchSummary) error { return nil }

func (NopArchive) GetRun(context.Context, string) (*ports.RunRow, error) { return nil, nil }

func (NopArchive) ListOutcomes(context.Context, string) ([]models.FileOutcome, error) {
	return nil, nil
}
