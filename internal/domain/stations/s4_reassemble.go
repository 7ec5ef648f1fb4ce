package stations

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/ppronobis/video-transcription-tool/internal/models"
)

// S4Reassemble merges chunk transcripts back into one document. The merge
// is driven purely by chunk ordinals, never by completion order, and every
// segment timing is re-based from chunk-local time onto the file timeline.
type S4Reassemble struct {
	log *log.Logger
}

func NewS4Reassemble(logger *log.Logger) *S4Reassemble {
	return &S4Reassemble{log: logger}
}

func (s *S4Reassemble) Run(set *models.ChunkSet, segs []models.TranscriptSegment) (models.TranscriptionResult, error) {
	var none models.TranscriptionResult
	s.log.Printf("[S4][START] file=%s segments=%d", set.File.Base(), len(segs))

	if len(segs) != len(set.Chunks) {
		return none, models.NewFault(models.KindInternal,
			"reassembly got %d segments for %d chunks of %s", len(segs), len(set.Chunks), set.File.Base())
	}

	ordered := make([]models.TranscriptSegment, len(segs))
	copy(ordered, segs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ChunkIndex < ordered[j].ChunkIndex })

	// The ordinal set must be exactly 0..n-1. A gap or duplicate means a
	// chunk result went missing and the transcript would be silently wrong.
	for i, seg := range ordered {
		if seg.ChunkIndex != i {
			return none, models.NewFault(models.KindInternal,
				"reassembly ordinal %d missing for %s", i, set.File.Base())
		}
	}

	starts := make(map[int]float64, len(set.Chunks))
	for _, c := range set.Chunks {
		starts[c.Index] = c.Start
	}

	var (
		texts    []string
		timings  []models.SegmentTiming
		duration float64
	)
	for _, seg := range ordered {
		texts = append(texts, seg.Text)
		duration += seg.Duration
		offset := starts[seg.ChunkIndex]
		for _, t := range seg.Timings {
			timings = append(timings, models.SegmentTiming{
				Start: offset + t.Start,
				End:   offset + t.End,
				Text:  t.Text,
			})
		}
	}

	s.log.Printf("[S4][OK] file=%s chars=%d timings=%d dur=%.1fs",
		set.File.Base(), len(strings.Join(texts, "\n")), len(timings), duration)
	return models.TranscriptionResult{
		Source:      set.File.Base(),
		Text:        strings.Join(texts, "\n"),
		Timings:     timings,
		Duration:    duration,
		GeneratedAt: time.Now(),
	}, nil
}
