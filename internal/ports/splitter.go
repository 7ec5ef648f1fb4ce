package ports

import (
	"context"

	"github.com/ppronobis/video-transcription-tool/internal/models"
)

// Prober inspects a media file and reports its playable duration.
// An undecodable container fails with models.KindUnsplittable.
type Prober interface {
	Probe(ctx context.Context, path string) (durationSeconds float64, err error)
}

// Splitter cuts an oversized file into contiguous time-bounded chunks whose
// artifacts each fit under sizeCeiling bytes. Files already under the
// ceiling come back as a single chunk aliasing the source, no I/O done.
// The returned set owns every temporary artifact; callers release it.
type Splitter interface {
	Split(ctx context.Context, file models.MediaFile, sizeCeiling int64, targetSeconds float64) (*models.ChunkSet, error)
}
