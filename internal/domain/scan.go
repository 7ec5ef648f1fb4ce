package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ppronobis/video-transcription-tool/internal/models"
)

// ScanInputDir lists supported media files directly under dir, sorted by
// name. The dir is created when missing so a fresh checkout starts clean;
// subdirectories are not descended into.
func ScanInputDir(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scan input dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan input dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if models.SupportedExtensions[models.ExtOf(e.Name())] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
