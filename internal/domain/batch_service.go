package domain

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppronobis/video-transcription-tool/internal/metrics"
	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// BatchConfig carries the batch-level knobs on top of the per-file ones.
type BatchConfig struct {
	FileWorkers int
	LogsDir     string
	Job         JobConfig
}

// BatchService runs independent file jobs over a bounded worker pool and
// keeps the books: per-run audit log, durable failure records, optional run
// archive, and live progress events. One file's failure never aborts the
// batch.
type BatchService struct {
	prober      ports.Prober
	splitter    ports.Splitter
	transcriber ports.Transcriber
	store       ports.TranscriptStore
	failures    ports.FailureLog
	archive     ports.RunArchive
	metrics     *metrics.Metrics
	cfg         BatchConfig

	events chan ports.ProgressEvent
}

var _ ports.BatchRunner = (*BatchService)(nil)

func NewBatchService(
	prober ports.Prober,
	splitter ports.Splitter,
	transcriber ports.Transcriber,
	store ports.TranscriptStore,
	failures ports.FailureLog,
	archive ports.RunArchive,
	m *metrics.Metrics,
	cfg BatchConfig,
) *BatchService {
	if cfg.FileWorkers < 1 {
		cfg.FileWorkers = 1
	}
	return &BatchService{
		prober:      prober,
		splitter:    splitter,
		transcriber: transcriber,
		store:       store,
		failures:    failures,
		archive:     archive,
		metrics:     m,
		cfg:         cfg,
		events:      make(chan ports.ProgressEvent, 100),
	}
}

func (b *BatchService) Events() <-chan ports.ProgressEvent { return b.events }

// Run processes every file in the list.
func (b *BatchService) Run(ctx context.Context, files []string) (models.BatchSummary, error) {
	return b.run(ctx, files, "batch", nil)
}

// RunFailed processes only the files left outstanding in the failure log.
// Entries whose file no longer exists are resolved away instead of failing
// again.
func (b *BatchService) RunFailed(ctx context.Context) (models.BatchSummary, error) {
	outstanding, err := b.failures.Outstanding()
	if err != nil {
		return models.BatchSummary{}, err
	}

	var files, vanished []string
	for _, rec := range outstanding {
		if _, statErr := os.Stat(rec.Path); statErr != nil {
			vanished = append(vanished, rec.Path)
			continue
		}
		files = append(files, rec.Path)
	}
	return b.run(ctx, files, "retry", vanished)
}

// ========================================================================
// RUN
// ========================================================================
func (b *BatchService) run(ctx context.Context, files []string, mode string, vanished []string) (models.BatchSummary, error) {
	runID := uuid.NewString()
	startedAt := time.Now()

	logger, closeLog, err := b.newRunLogger(runID)
	if err != nil {
		return models.BatchSummary{}, err
	}
	defer closeLog()

	logger.Printf("[RUN][START] id=%s mode=%s files=%d", runID, mode, len(files))
	if err := b.archive.BeginRun(ctx, runID, mode, len(files)); err != nil {
		logger.Printf("[RUN][ARCHIVE-ERR] %v", err)
	}

	for _, path := range vanished {
		logger.Printf("[RETRY][SKIP] file=%s reason=missing", path)
		if err := b.failures.Resolve(path, runID); err != nil {
			logger.Printf("[RUN][LOG-ERR] %v", err)
		}
	}

	// Resolution markers only make sense for files with an outstanding
	// failure; snapshot that set before the run mutates the log.
	wasFailed := make(map[string]bool)
	if prior, err := b.failures.Outstanding(); err == nil {
		for _, rec := range prior {
			wasFailed[rec.Path] = true
		}
	}

	notify := func(ev ports.ProgressEvent) {
		ev.RunID = runID
		select {
		case b.events <- ev:
		default: // nobody listening; progress is advisory
		}
	}
	js := NewJobService(b.prober, b.splitter, b.transcriber, b.store, b.cfg.Job, b.metrics, logger, notify)

	var (
		mu        sync.Mutex
		succeeded int
		failed    []models.FailureRecord
	)

	var g errgroup.Group
	g.SetLimit(b.cfg.FileWorkers)
	for _, path := range files {
		g.Go(func() error {
			out := js.Process(ctx, path)

			mu.Lock()
			defer mu.Unlock()
			if out.State == models.JobCompleted {
				succeeded++
				if wasFailed[out.File] {
					if err := b.failures.Resolve(out.File, runID); err != nil {
						logger.Printf("[RUN][LOG-ERR] %v", err)
					}
				}
			} else {
				rec := models.FailureRecord{
					Path:     out.File,
					Kind:     out.Kind,
					Message:  out.Message,
					RunID:    runID,
					FailedAt: time.Now(),
				}
				failed = append(failed, rec)
				// A canceled job was interrupted, not rejected; it will
				// come back on the next scan without a durable record.
				if out.Kind != models.KindCanceled {
					if err := b.failures.Append(rec); err != nil {
						logger.Printf("[RUN][LOG-ERR] %v", err)
					}
				}
			}
			if err := b.archive.RecordOutcome(ctx, runID, out); err != nil {
				logger.Printf("[RUN][ARCHIVE-ERR] %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := models.BatchSummary{
		RunID:     runID,
		Total:     len(files),
		Succeeded: succeeded,
		Failed:    failed,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
	}
	if err := b.archive.FinishRun(ctx, runID, summary); err != nil {
		logger.Printf("[RUN][ARCHIVE-ERR] %v", err)
	}
	logger.Printf("[RUN][DONE] id=%s ok=%d failed=%d dur=%s",
		runID, succeeded, len(failed), summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// newRunLogger opens the per-run audit log, mirrored to stdout.
func (b *BatchService) newRunLogger(runID string) (*log.Logger, func(), error) {
	if err := os.MkdirAll(b.cfg.LogsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create logs dir: %w", err)
	}

	name := fmt.Sprintf("run_%s_%s.log", runID, time.Now().Format("2006-01-02T15-04-05"))
	path := filepath.Join(b.cfg.LogsDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open run log: %w", err)
	}

	logger := log.New(io.MultiWriter(os.Stdout, f), "", log.LstdFlags|log.Lmicroseconds)
	return logger, func() { f.Close() }, nil
}
