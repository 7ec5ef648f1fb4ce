package infra

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// JSONLFailureLog is the durable record of files that failed a run. The file
// is append-only JSONL so history stays auditable; resolution is a second
// event kind folded out on read, never an in-place edit.
type JSONLFailureLog struct {
	path string
	mu   sync.Mutex
}

var _ ports.FailureLog = (*JSONLFailureLog)(nil)

func NewFailureLog(path string) *JSONLFailureLog {
	return &JSONLFailureLog{path: path}
}

// logLine is one JSONL event. Event "failed" carries the classification;
// event "resolved" clears the path from the outstanding set.
type logLine struct {
	Event   string           `json:"event"`
	Path    string           `json:"path"`
	Kind    models.ErrorKind `json:"kind,omitempty"`
	Message string           `json:"message,omitempty"`
	RunID   string           `json:"run_id"`
	At      time.Time        `json:"at"`
}

// Append records a failed file. Safe for concurrent use.
func (l *JSONLFailureLog) Append(rec models.FailureRecord) error {
	return l.write(logLine{
		Event:   "failed",
		Path:    rec.Path,
		Kind:    rec.Kind,
		Message: rec.Message,
		RunID:   rec.RunID,
		At:      rec.FailedAt,
	})
}

// Resolve records that path succeeded in a later run, dropping it from the
// outstanding set without rewriting history.
func (l *JSONLFailureLog) Resolve(path, runID string) error {
	return l.write(logLine{
		Event: "resolved",
		Path:  path,
		RunID: runID,
		At:    time.Now(),
	})
}

func (l *JSONLFailureLog) write(line logLine) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failure log: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failure log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failure log: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failure log: %w", err)
	}
	return nil
}

// Outstanding folds the event history into the set of files still failed:
// the latest "failed" per path, unless a later "resolved" cleared it. Order
// follows first failure. A torn final line from a crashed run is skipped.
func (l *JSONLFailureLog) Outstanding() ([]models.FailureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failure log: %w", err)
	}
	defer f.Close()

	open := make(map[string]models.FailureRecord)
	var order []string

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line logLine
		if err := json.Unmarshal(raw, &line); err != nil {
			continue
		}
		switch line.Event {
		case "failed":
			if _, ok := open[line.Path]; !ok {
				order = append(order, line.Path)
			}
			open[line.Path] = models.FailureRecord{
				Path:     line.Path,
				Kind:     line.Kind,
				Message:  line.Message,
				RunID:    line.RunID,
				FailedAt: line.At,
			}
		case "resolved":
			delete(open, line.Path)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failure log: %w", err)
	}

	out := make([]models.FailureRecord, 0, len(open))
	seen := make(map[string]bool, len(open))
	for _, path := range order {
		rec, ok := open[path]
		if !ok || seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, rec)
	}
	return out, nil
}
