package domain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppronobis/video-transcription-tool/internal/metrics"
	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// memFailureLog mirrors the JSONL log's fold semantics in memory.
type memFailureLog struct {
	mu     sync.Mutex
	events []failureEvent
}

type failureEvent struct {
	resolved bool
	path     string
	rec      models.FailureRecord
}

func (l *memFailureLog) Append(rec models.FailureRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, failureEvent{path: rec.Path, rec: rec})
	return nil
}

func (l *memFailureLog) Resolve(path, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, failureEvent{resolved: true, path: path})
	return nil
}

func (l *memFailureLog) Outstanding() ([]models.FailureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	open := make(map[string]models.FailureRecord)
	var order []string
	for _, ev := range l.events {
		if ev.resolved {
			delete(open, ev.path)
			continue
		}
		if _, ok := open[ev.path]; !ok {
			order = append(order, ev.path)
		}
		open[ev.path] = ev.rec
	}
	var out []models.FailureRecord
	seen := make(map[string]bool)
	for _, p := range order {
		if rec, ok := open[p]; ok && !seen[p] {
			seen[p] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *memFailureLog) appendedPaths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		if !ev.resolved {
			out = append(out, ev.path)
		}
	}
	return out
}

func (l *memFailureLog) resolvedPaths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		if ev.resolved {
			out = append(out, ev.path)
		}
	}
	return out
}

type memArchive struct {
	mu       sync.Mutex
	modes    map[string]string
	outcomes map[string][]models.FileOutcome
	finished map[string]models.BatchSummary
}

func newMemArchive() *memArchive {
	return &memArchive{
		modes:    make(map[string]string),
		outcomes: make(map[string][]models.FileOutcome),
		finished: make(map[string]models.BatchSummary),
	}
}

func (a *memArchive) BeginRun(_ context.Context, id, mode string, _ int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.modes[id] = mode
	return nil
}

func (a *memArchive) RecordOutcome(_ context.Context, runID string, out models.FileOutcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[runID] = append(a.outcomes[runID], out)
	return nil
}

func (a *memArchive) FinishRun(_ context.Context, id string, summary models.BatchSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished[id] = summary
	return nil
}

func (a *memArchive) GetRun(_ context.Context, id string) (*ports.RunRow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mode, ok := a.modes[id]
	if !ok {
		return nil, nil
	}
	row := &ports.RunRow{ID: id, Mode: mode}
	if s, ok := a.finished[id]; ok {
		row.Total = s.Total
		row.Succeeded = s.Succeeded
		row.Failed = len(s.Failed)
	}
	return row, nil
}

func (a *memArchive) ListOutcomes(_ context.Context, runID string) ([]models.FileOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcomes[runID], nil
}

func drainEvents(b *BatchService) []ports.ProgressEvent {
	var out []ports.ProgressEvent
	for {
		select {
		case ev := <-b.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func newTestBatch(t *testing.T, api ports.Transcriber, flog ports.FailureLog, arch ports.RunArchive, store ports.TranscriptStore) *BatchService {
	t.Helper()
	cfg := BatchConfig{
		FileWorkers: 2,
		LogsDir:     filepath.Join(t.TempDir(), "logs"),
		Job:         testJobConfig(),
	}
	return NewBatchService(stubProber{dur: 42}, passThroughSplit(), api, store, flog, arch, metrics.Nop(), cfg)
}

func TestBatchIsolatesFileFailures(t *testing.T) {
	a := mediaFixture(t, "a.mp3")
	bad := mediaFixture(t, "b.mp3")
	c := mediaFixture(t, "c.mp3")

	api := &stubTranscriber{fail: map[string]error{
		bad: models.NewFault(models.KindAuth, "bad key"),
	}}
	flog := &memFailureLog{}
	arch := newMemArchive()
	store := &memStore{}
	batch := newTestBatch(t, api, flog, arch, store)

	summary, err := batch.Run(context.Background(), []string{a, bad, c})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if summary.Total != 3 || summary.Succeeded != 2 {
		t.Fatalf("summary = %+v, want 2 of 3 succeeded", summary)
	}
	if len(summary.Failed) != 1 || summary.Failed[0].Path != bad || summary.Failed[0].Kind != models.KindAuth {
		t.Fatalf("Failed = %+v, want the one auth failure", summary.Failed)
	}
	if store.count() != 2 {
		t.Errorf("store has %d transcripts, want 2", store.count())
	}

	outstanding, _ := flog.Outstanding()
	if len(outstanding) != 1 || outstanding[0].Path != bad {
		t.Errorf("Outstanding = %+v, want only the failed file", outstanding)
	}
	if got := arch.outcomes[summary.RunID]; len(got) != 3 {
		t.Errorf("archive holds %d outcomes, want 3", len(got))
	}
	if arch.modes[summary.RunID] != "batch" {
		t.Errorf("archive mode = %q, want batch", arch.modes[summary.RunID])
	}
}

func TestBatchResolvesPriorFailure(t *testing.T) {
	a := mediaFixture(t, "a.mp3")
	fresh := mediaFixture(t, "fresh.mp3")

	flog := &memFailureLog{}
	if err := flog.Append(models.FailureRecord{Path: a, Kind: models.KindExhausted, Message: "earlier run"}); err != nil {
		t.Fatal(err)
	}
	batch := newTestBatch(t, &stubTranscriber{}, flog, newMemArchive(), &memStore{})

	summary, err := batch.Run(context.Background(), []string{a, fresh})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if summary.Succeeded != 2 {
		t.Fatalf("summary = %+v, want both succeeded", summary)
	}

	outstanding, _ := flog.Outstanding()
	if len(outstanding) != 0 {
		t.Errorf("Outstanding = %+v, want the prior failure resolved", outstanding)
	}
	resolved := flog.resolvedPaths()
	if len(resolved) != 1 || resolved[0] != a {
		t.Errorf("resolved = %v, want only the previously failed path", resolved)
	}
}

func TestRunFailedProcessesOutstandingOnly(t *testing.T) {
	a := mediaFixture(t, "a.mp3")
	vanished := filepath.Join(t.TempDir(), "gone.mp3") // never created

	flog := &memFailureLog{}
	flog.Append(models.FailureRecord{Path: a, Kind: models.KindExhausted})
	flog.Append(models.FailureRecord{Path: vanished, Kind: models.KindServer})

	arch := newMemArchive()
	batch := newTestBatch(t, &stubTranscriber{}, flog, arch, &memStore{})

	summary, err := batch.RunFailed(context.Background())
	if err != nil {
		t.Fatalf("RunFailed() = %v", err)
	}
	if summary.Total != 1 || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v, want exactly the one existing file processed", summary)
	}
	if arch.modes[summary.RunID] != "retry" {
		t.Errorf("archive mode = %q, want retry", arch.modes[summary.RunID])
	}

	outstanding, _ := flog.Outstanding()
	if len(outstanding) != 0 {
		t.Errorf("Outstanding = %+v, want both entries cleared (one retried, one vanished)", outstanding)
	}
}

func TestRunFailedEmptyLog(t *testing.T) {
	batch := newTestBatch(t, &stubTranscriber{}, &memFailureLog{}, newMemArchive(), &memStore{})
	summary, err := batch.RunFailed(context.Background())
	if err != nil {
		t.Fatalf("RunFailed() = %v", err)
	}
	if summary.Total != 0 || summary.Succeeded != 0 || len(summary.Failed) != 0 {
		t.Fatalf("summary = %+v, want an empty clean run", summary)
	}
}

func TestBatchEventsCarryRunID(t *testing.T) {
	a := mediaFixture(t, "a.mp3")
	batch := newTestBatch(t, &stubTranscriber{}, &memFailureLog{}, newMemArchive(), &memStore{})

	summary, err := batch.Run(context.Background(), []string{a})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}

	events := drainEvents(batch)
	if len(events) == 0 {
		t.Fatal("no progress events emitted")
	}
	sawCompleted := false
	for _, ev := range events {
		if ev.RunID != summary.RunID {
			t.Fatalf("event %+v carries run %q, want %q", ev, ev.RunID, summary.RunID)
		}
		if ev.State == models.JobCompleted {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Error("no completed event observed")
	}
}

func TestBatchCanceledFileLeavesNoDurableRecord(t *testing.T) {
	a := mediaFixture(t, "a.mp3")
	flog := &memFailureLog{}
	batch := newTestBatch(t, &stubTranscriber{}, flog, newMemArchive(), &memStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := batch.Run(ctx, []string{a})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(summary.Failed) != 1 || summary.Failed[0].Kind != models.KindCanceled {
		t.Fatalf("Failed = %+v, want one canceled outcome in the summary", summary.Failed)
	}
	if got := flog.appendedPaths(); len(got) != 0 {
		t.Errorf("failure log got %v, want no durable record for a canceled job", got)
	}
}

func TestBatchWritesRunLog(t *testing.T) {
	a := mediaFixture(t, "a.mp3")
	logsDir := filepath.Join(t.TempDir(), "logs")
	cfg := BatchConfig{FileWorkers: 1, LogsDir: logsDir, Job: testJobConfig()}
	batch := NewBatchService(stubProber{dur: 42}, passThroughSplit(), &stubTranscriber{}, &memStore{},
		&memFailureLog{}, newMemArchive(), metrics.Nop(), cfg)

	if _, err := batch.Run(context.Background(), []string{a}); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	entries, err := os.ReadDir(logsDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "run_") {
		t.Fatalf("logs dir = %v, want one run_*.log file", entries)
	}
	data, err := os.ReadFile(filepath.Join(logsDir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	for _, marker := range []string{"[RUN][START]", "[JOB][DONE]", "[RUN][DONE]"} {
		if !strings.Contains(string(data), marker) {
			t.Errorf("run log missing %s", marker)
		}
	}
}
