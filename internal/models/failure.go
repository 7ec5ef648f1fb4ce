package models

import "time"

// AttemptRecord describes one API call attempt for one chunk. Attempts are
// log data only; they are not persisted past the retry loop.
type AttemptRecord struct {
	Attempt int
	Kind    ErrorKind // empty on success
	Err     error
	Latency time.Duration
}

// FailureRecord is one file that exhausted its retries or failed fatally.
// Records are appended to the durable failure log and drive retry runs.
type FailureRecord struct {
	Path     string    `json:"path"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	RunID    string    `json:"run_id,omitempty"`
	FailedAt time.Time `json:"failed_at"`
}
