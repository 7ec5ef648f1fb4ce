package models

import "time"

// SegmentTiming is one timed span of transcript text. Times are relative to
// the chunk as returned by the API; reassembly re-bases them onto the file
// timeline.
type SegmentTiming struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptSegment is the transcription of a single chunk.
type TranscriptSegment struct {
	ChunkIndex int             `json:"chunk_index"`
	Text       string          `json:"text"`
	Duration   float64         `json:"duration_seconds"`
	Timings    []SegmentTiming `json:"timings,omitempty"`
}

// TranscriptionResult is the final per-file transcript, immutable once
// written.
type TranscriptionResult struct {
	Source      string          `json:"source"` // base name of the input file
	Text        string          `json:"text"`
	Timings     []SegmentTiming `json:"timings,omitempty"` // absolute file timeline
	Duration    float64         `json:"duration_seconds"`
	Model       string          `json:"model"`
	GeneratedAt time.Time       `json:"generated_at"`
}
