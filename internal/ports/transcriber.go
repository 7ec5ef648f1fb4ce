package ports

import (
	"context"

	"github.com/ppronobis/video-transcription-tool/internal/models"
)

// Transcriber submits one chunk's audio to the speech-to-text capability.
// Failures carry a models.ErrorKind classification derived from the API's
// structured error response.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk models.Chunk) (models.TranscriptSegment, error)
}
