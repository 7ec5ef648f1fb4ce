package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// TranscriptStore writes finished transcripts into the output directory and
// prunes stale duplicates left by repeated runs over the same inputs.
type TranscriptStore struct {
	outputDir string
}

var _ ports.TranscriptStore = (*TranscriptStore)(nil)

func NewTranscriptStore(outputDir string) *TranscriptStore {
	return &TranscriptStore{outputDir: outputDir}
}

const headerRule = "--------------------------------------------------"

// Write renders the transcript artifact and creates it under a timestamped
// name. Two files transcribed in the same second get distinct names through
// an exclusive-create suffix loop; an existing file is never overwritten.
func (s *TranscriptStore) Write(result models.TranscriptionResult) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", models.WrapFault(models.KindInternal, err, "create output dir")
	}

	base := filepath.Base(result.Source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ts := result.GeneratedAt.Format("20060102_150405")

	content := render(result)
	for n := 1; n <= 100; n++ {
		name := fmt.Sprintf("%s_%s.txt", stem, ts)
		if n > 1 {
			name = fmt.Sprintf("%s_%s_%d.txt", stem, ts, n)
		}
		path := filepath.Join(s.outputDir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", models.WrapFault(models.KindInternal, err, "create transcript %s", name)
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return "", models.WrapFault(models.KindInternal, err, "write transcript %s", name)
		}
		if err := f.Close(); err != nil {
			return "", models.WrapFault(models.KindInternal, err, "close transcript %s", name)
		}
		return path, nil
	}
	return "", models.NewFault(models.KindInternal, "no free transcript name for %s at %s", stem, ts)
}

// render produces the artifact text: a header, the transcript body, and a
// timing appendix when segment timings are present.
func render(result models.TranscriptionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcription of: %s\n", filepath.Base(result.Source))
	fmt.Fprintf(&b, "Transcribed on: %s\n", result.GeneratedAt.Format("2006-01-02 15:04:05"))
	b.WriteString(headerRule + "\n\n")
	b.WriteString(result.Text)

	if len(result.Timings) > 0 {
		b.WriteString("\n\n" + headerRule + "\n")
		b.WriteString("Detailed segments:\n")
		for _, seg := range result.Timings {
			fmt.Fprintf(&b, "\n[%.2fs - %.2fs]: %s", seg.Start, seg.End, seg.Text)
		}
	}
	return b.String()
}

// transcriptName matches "<stem>_YYYYMMDD_HHMMSS.txt" with an optional
// collision suffix, capturing the stem.
var transcriptName = regexp.MustCompile(`^(.+)_\d{8}_\d{6}(?:_\d+)?\.txt$`)

// Prune keeps only the newest transcript per source stem and deletes older
// duplicates. Files that do not look like transcripts are left alone.
func (s *TranscriptStore) Prune() (kept, deleted int, err error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("prune: %w", err)
	}

	type candidate struct {
		name string
		mod  int64
	}
	groups := make(map[string][]candidate)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := transcriptName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		groups[m[1]] = append(groups[m[1]], candidate{name: e.Name(), mod: info.ModTime().UnixNano()})
	}

	for _, cands := range groups {
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].mod != cands[j].mod {
				return cands[i].mod > cands[j].mod
			}
			return cands[i].name > cands[j].name
		})
		kept++
		for _, old := range cands[1:] {
			if rmErr := os.Remove(filepath.Join(s.outputDir, old.name)); rmErr != nil {
				return kept, deleted, fmt.Errorf("prune %s: %w", old.name, rmErr)
			}
			deleted++
		}
	}
	return kept, deleted, nil
}
