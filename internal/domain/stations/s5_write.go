package stations

import (
	"log"

	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// S5Write persists the finished transcript.
type S5Write struct {
	store ports.TranscriptStore
	log   *log.Logger
}

func NewS5Write(store ports.TranscriptStore, logger *log.Logger) *S5Write {
	return &S5Write{store: store, log: logger}
}

func (s *S5Write) Run(result models.TranscriptionResult) (string, error) {
	path, err := s.store.Write(result)
	if err != nil {
		s.log.Printf("[S5][ERR] source=%s err=%v", result.Source, err)
		return "", err
	}
	s.log.Printf("[S5][SAVED] source=%s path=%s", result.Source, path)
	return path, nil
}
