package stations

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// S1Probe validates an input file and reads its duration. Local checks
// happen before any process is spawned: the file must exist, be a regular
// readable file, and carry a recognized extension.
type S1Probe struct {
	prober ports.Prober
	log    *log.Logger
}

func NewS1Probe(prober ports.Prober, logger *log.Logger) *S1Probe {
	return &S1Probe{prober: prober, log: logger}
}

func (s *S1Probe) Run(ctx context.Context, path string) (models.MediaFile, error) {
	s.log.Printf("[S1][START] file=%s", filepath.Base(path))
	var none models.MediaFile

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return none, models.NewFault(models.KindInvalidInput, "file not found: %s", path)
		}
		return none, models.WrapFault(models.KindInvalidInput, err, "stat %s", path)
	}
	if info.IsDir() {
		return none, models.NewFault(models.KindInvalidInput, "%s is a directory", path)
	}

	ext := models.ExtOf(path)
	if !models.SupportedExtensions[ext] {
		return none, models.NewFault(models.KindInvalidInput,
			"unsupported format %q (supported: %s)", ext, supportedList())
	}

	f, err := os.Open(path)
	if err != nil {
		return none, models.WrapFault(models.KindInvalidInput, err, "file not readable: %s", path)
	}
	f.Close()

	dur, err := s.prober.Probe(ctx, path)
	if err != nil {
		s.log.Printf("[S1][ERR] file=%s err=%v", filepath.Base(path), err)
		return none, err
	}

	s.log.Printf("[S1][OK] file=%s size=%d dur=%.1fs", filepath.Base(path), info.Size(), dur)
	return models.MediaFile{
		Path:      path,
		Size:      info.Size(),
		Ext:       ext,
		Duration:  dur,
		CheckedAt: time.Now(),
	}, nil
}

func supportedList() string {
	exts := make([]string, 0, len(models.SupportedExtensions))
	for ext := range models.SupportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
