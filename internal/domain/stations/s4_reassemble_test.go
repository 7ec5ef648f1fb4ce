package stations

import (
	"testing"

	"github.com/ppronobis/video-transcription-tool/internal/models"
)

func threeChunkSet() *models.ChunkSet {
	return &models.ChunkSet{
		File: models.MediaFile{Path: "/media/talk.mp4", Duration: 1800},
		Chunks: []models.Chunk{
			{Index: 0, Start: 0, Duration: 600},
			{Index: 1, Start: 600, Duration: 600},
			{Index: 2, Start: 1200, Duration: 600},
		},
		TempDir: "/tmp/ignored",
	}
}

func TestS4ReassembleOrdersByOrdinal(t *testing.T) {
	// Segments arrive in completion order, not chunk order.
	segs := []models.TranscriptSegment{
		{ChunkIndex: 2, Text: "third", Duration: 600},
		{ChunkIndex: 0, Text: "first", Duration: 600},
		{ChunkIndex: 1, Text: "second", Duration: 600},
	}

	s4 := NewS4Reassemble(discard())
	result, err := s4.Run(threeChunkSet(), segs)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if result.Text != "first\nsecond\nthird" {
		t.Errorf("Text = %q, want ordinal order joined by newline", result.Text)
	}
	if result.Source != "talk.mp4" {
		t.Errorf("Source = %q, want base name", result.Source)
	}
	if result.Duration != 1800 {
		t.Errorf("Duration = %v, want summed 1800", result.Duration)
	}
}

func TestS4ReassembleRebasesTimings(t *testing.T) {
	segs := []models.TranscriptSegment{
		{ChunkIndex: 1, Text: "b", Duration: 600, Timings: []models.SegmentTiming{
			{Start: 0, End: 4.5, Text: "late"},
		}},
		{ChunkIndex: 0, Text: "a", Duration: 600, Timings: []models.SegmentTiming{
			{Start: 1.5, End: 3, Text: "early"},
		}},
		{ChunkIndex: 2, Text: "c", Duration: 600},
	}

	s4 := NewS4Reassemble(discard())
	result, err := s4.Run(threeChunkSet(), segs)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(result.Timings) != 2 {
		t.Fatalf("Timings = %d entries, want 2", len(result.Timings))
	}
	if result.Timings[0].Start != 1.5 || result.Timings[0].End != 3 || result.Timings[0].Text != "early" {
		t.Errorf("Timings[0] = %+v, want chunk 0 local times unchanged", result.Timings[0])
	}
	if result.Timings[1].Start != 600 || result.Timings[1].End != 604.5 {
		t.Errorf("Timings[1] = %+v, want re-based onto the file timeline", result.Timings[1])
	}
}

func TestS4ReassembleDetectsGap(t *testing.T) {
	segs := []models.TranscriptSegment{
		{ChunkIndex: 0, Text: "a"},
		{ChunkIndex: 2, Text: "c"},
		{ChunkIndex: 2, Text: "dup"},
	}

	s4 := NewS4Reassemble(discard())
	_, err := s4.Run(threeChunkSet(), segs)
	if got := models.KindOf(err); got != models.KindInternal {
		t.Fatalf("KindOf = %v, want gap detected as internal failure", got)
	}
}

func TestS4ReassembleDetectsCountMismatch(t *testing.T) {
	segs := []models.TranscriptSegment{
		{ChunkIndex: 0, Text: "a"},
		{ChunkIndex: 1, Text: "b"},
	}

	s4 := NewS4Reassemble(discard())
	_, err := s4.Run(threeChunkSet(), segs)
	if got := models.KindOf(err); got != models.KindInternal {
		t.Fatalf("KindOf = %v, want mismatch detected as internal failure", got)
	}
}

func TestS4ReassembleSingleChunk(t *testing.T) {
	set := &models.ChunkSet{
		File:   models.MediaFile{Path: "/media/short.mp3", Duration: 42},
		Chunks: []models.Chunk{{Index: 0, Start: 0, Duration: 42}},
	}
	segs := []models.TranscriptSegment{{ChunkIndex: 0, Text: " whole file", Duration: 42,
		Timings: []models.SegmentTiming{{Start: 0, End: 42, Text: " whole file"}}}}

	s4 := NewS4Reassemble(discard())
	result, err := s4.Run(set, segs)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if result.Text != " whole file" {
		t.Errorf("Text = %q, want untouched single chunk text", result.Text)
	}
	if result.Timings[0].End != 42 {
		t.Errorf("Timings = %+v, want unchanged for offset 0", result.Timings)
	}
}
