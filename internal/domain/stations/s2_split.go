package stations

import (
	"context"
	"log"

	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// S2Split turns a validated file into its chunk set. Files under the size
// ceiling pass through as a single chunk without touching ffmpeg.
type S2Split struct {
	splitter      ports.Splitter
	sizeCeiling   int64
	targetSeconds float64
	log           *log.Logger
}

func NewS2Split(splitter ports.Splitter, sizeCeiling int64, targetSeconds float64, logger *log.Logger) *S2Split {
	return &S2Split{
		splitter:      splitter,
		sizeCeiling:   sizeCeiling,
		targetSeconds: targetSeconds,
		log:           logger,
	}
}

func (s *S2Split) Run(ctx context.Context, file models.MediaFile) (*models.ChunkSet, error) {
	s.log.Printf("[S2][START] file=%s size=%d ceiling=%d", file.Base(), file.Size, s.sizeCeiling)

	set, err := s.splitter.Split(ctx, file, s.sizeCeiling, s.targetSeconds)
	if err != nil {
		s.log.Printf("[S2][ERR] file=%s err=%v", file.Base(), err)
		return nil, err
	}

	if len(set.Chunks) == 1 && set.TempDir == "" {
		s.log.Printf("[S2][OK] file=%s pass-through", file.Base())
	} else {
		s.log.Printf("[S2][OK] file=%s chunks=%d window=%.1fs dir=%s",
			file.Base(), len(set.Chunks), set.Chunks[0].Duration, set.TempDir)
	}
	return set, nil
}
