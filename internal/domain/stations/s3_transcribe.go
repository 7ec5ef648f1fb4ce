package stations

import (
	"context"
	"log"
	"time"

	"github.com/ppronobis/video-transcription-tool/internal/metrics"
	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
	"github.com/ppronobis/video-transcription-tool/internal/retry"
)

// S3Transcribe sends one chunk through the retry policy to the API. Every
// attempt lands in the run log with its classification and latency, so a
// throttled run is diagnosable after the fact.
type S3Transcribe struct {
	transcriber ports.Transcriber
	policy      retry.Policy
	metrics     *metrics.Metrics
	log         *log.Logger
}

func NewS3Transcribe(transcriber ports.Transcriber, policy retry.Policy, m *metrics.Metrics, logger *log.Logger) *S3Transcribe {
	return &S3Transcribe{
		transcriber: transcriber,
		policy:      policy,
		metrics:     m,
		log:         logger,
	}
}

func (s *S3Transcribe) Run(ctx context.Context, chunk models.Chunk) (models.TranscriptSegment, error) {
	s.log.Printf("[S3][START] chunk=%d size=%d", chunk.Index, chunk.Size)

	var seg models.TranscriptSegment
	policy := s.policy
	policy.OnAttempt = func(rec models.AttemptRecord) {
		if rec.Attempt > 1 {
			s.metrics.Retries.Inc()
		}
		if rec.Err != nil {
			s.log.Printf("[S3][ATTEMPT] chunk=%d attempt=%d kind=%s latency=%s err=%v",
				chunk.Index, rec.Attempt, rec.Kind, rec.Latency.Round(time.Millisecond), rec.Err)
			return
		}
		s.log.Printf("[S3][ATTEMPT] chunk=%d attempt=%d ok latency=%s",
			chunk.Index, rec.Attempt, rec.Latency.Round(time.Millisecond))
	}

	err := policy.Do(ctx, func(ctx context.Context) error {
		got, err := s.transcriber.Transcribe(ctx, chunk)
		if err != nil {
			return err
		}
		seg = got
		return nil
	})
	if err != nil {
		s.log.Printf("[S3][ERR] chunk=%d kind=%s err=%v", chunk.Index, models.KindOf(err), err)
		return models.TranscriptSegment{}, err
	}

	s.log.Printf("[S3][OK] chunk=%d chars=%d segs=%d", chunk.Index, len(seg.Text), len(seg.Timings))
	return seg, nil
}
