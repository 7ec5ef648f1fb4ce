package models

import "time"

// JobState tracks one file's progress through the pipeline.
type JobState string

const (
	JobPending      JobState = "pending"
	JobSplitting    JobState = "splitting"
	JobTranscribing JobState = "transcribing"
	JobReassembling JobState = "reassembling"
	JobCompleted    JobState = "completed"
	JobFailed       JobState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ValidTransition enforces the allowed job state machine edges. Failed is
// reachable from every non-terminal state; success only advances one stage
// at a time.
func ValidTransition(from, to JobState) bool {
	if to == JobFailed {
		return !from.Terminal()
	}
	switch from {
	case JobPending:
		return to == JobSplitting
	case JobSplitting:
		return to == JobTranscribing
	case JobTranscribing:
		return to == JobReassembling
	case JobReassembling:
		return to == JobCompleted
	default:
		return false
	}
}

// FileOutcome is the terminal result of one file's job.
type FileOutcome struct {
	File           string        `json:"file"`
	State          JobState      `json:"state"` // completed or failed
	Kind           ErrorKind     `json:"kind,omitempty"`
	Message        string        `json:"message,omitempty"`
	TranscriptPath string        `json:"transcript_path,omitempty"`
	Chunks         int           `json:"chunks"`
	Duration       time.Duration `json:"duration"`
}

// BatchSummary is what one run reports back to the operator.
type BatchSummary struct {
	RunID     string          `json:"run_id"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    []FailureRecord `json:"failed,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
}
