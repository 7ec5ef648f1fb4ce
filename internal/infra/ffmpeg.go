package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// commandRunner abstracts process execution so splitter logic can be tested
// without ffmpeg installed.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// FFmpegProber reads container duration through ffprobe.
type FFmpegProber struct {
	ffprobePath string
	runner      commandRunner
}

var _ ports.Prober = (*FFmpegProber)(nil)

func NewFFmpegProber(ffprobePath string) *FFmpegProber {
	return &FFmpegProber{ffprobePath: ffprobePath, runner: execRunner{}}
}

// Probe returns the media duration in seconds. A file ffprobe cannot decode
// is unsplittable; a missing ffprobe binary is an environment problem, not a
// media problem.
func (p *FFmpegProber) Probe(ctx context.Context, path string) (float64, error) {
	out, err := p.runner.Run(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return 0, models.WrapFault(models.KindInternal, err, "ffprobe not available")
		}
		return 0, models.WrapFault(models.KindUnsplittable, err, "probe %s", filepath.Base(path))
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || dur <= 0 {
		return 0, models.NewFault(models.KindUnsplittable, "no usable duration for %s (ffprobe said %q)",
			filepath.Base(path), strings.TrimSpace(string(out)))
	}
	return dur, nil
}

// FFmpegSplitter exports contiguous mp3 windows of an oversized file.
type FFmpegSplitter struct {
	ffmpegPath string
	runner     commandRunner
}

var _ ports.Splitter = (*FFmpegSplitter)(nil)

func NewFFmpegSplitter(ffmpegPath string) *FFmpegSplitter {
	return &FFmpegSplitter{ffmpegPath: ffmpegPath, runner: execRunner{}}
}

// maxSplitAttempts bounds the window-halving loop for files whose bitrate
// varies so much that an exported window still lands over the ceiling.
const maxSplitAttempts = 3

// minWindowSeconds is the smallest window worth exporting. Below this the
// file is effectively unsplittable.
const minWindowSeconds = 1.0

// Split returns the chunk set for file. A file already under the ceiling
// becomes a single chunk aliasing the source path with no temp dir. An
// oversized file is tiled into windows sized from its average byte rate with
// a safety margin, exported as mp3, and verified against the ceiling.
func (s *FFmpegSplitter) Split(ctx context.Context, file models.MediaFile, sizeCeiling int64, targetSeconds float64) (*models.ChunkSet, error) {
	if file.Size <= sizeCeiling {
		return &models.ChunkSet{
			File: file,
			Chunks: []models.Chunk{{
				Index:    0,
				Start:    0,
				Duration: file.Duration,
				Size:     file.Size,
				Path:     file.Path,
			}},
		}, nil
	}

	if file.Duration <= 0 {
		return nil, models.NewFault(models.KindUnsplittable, "cannot window %s without a duration", file.Base())
	}

	tempDir, err := os.MkdirTemp("", "transcribe_chunks_")
	if err != nil {
		return nil, models.WrapFault(models.KindInternal, err, "create chunk dir")
	}

	window := s.initialWindow(file, sizeCeiling, targetSeconds)
	for attempt := 1; attempt <= maxSplitAttempts; attempt++ {
		if window < minWindowSeconds {
			break
		}
		chunks, oversize, err := s.export(ctx, file, tempDir, window, sizeCeiling)
		if err != nil {
			os.RemoveAll(tempDir)
			return nil, err
		}
		if !oversize {
			return &models.ChunkSet{File: file, Chunks: chunks, TempDir: tempDir}, nil
		}
		// A window came out over the ceiling despite the margin. Halve and
		// start over with smaller windows.
		clearDir(tempDir)
		window /= 2
	}

	os.RemoveAll(tempDir)
	return nil, models.NewFault(models.KindUnsplittable,
		"%s cannot be split under %d bytes even with %v-second windows", file.Base(), sizeCeiling, window)
}

// initialWindow picks the window duration: the configured target, shrunk
// when the file's average byte rate would push a full window over the
// ceiling. The 0.9 margin absorbs bitrate variance around the average.
func (s *FFmpegSplitter) initialWindow(file models.MediaFile, sizeCeiling int64, targetSeconds float64) float64 {
	byteRate := float64(file.Size) / file.Duration
	safe := float64(sizeCeiling) / byteRate * 0.9
	if safe < targetSeconds {
		return safe
	}
	return targetSeconds
}

// export tiles the file into windows of the given duration. It reports
// oversize=true when any produced chunk breaks the ceiling so the caller
// can retry with a smaller window.
func (s *FFmpegSplitter) export(ctx context.Context, file models.MediaFile, tempDir string, window float64, sizeCeiling int64) ([]models.Chunk, bool, error) {
	var chunks []models.Chunk
	start := 0.0
	// The 1e-6 slack keeps float accumulation from producing a final
	// zero-length window.
	for i := 0; file.Duration-start > 1e-6; i++ {
		dur := window
		if remaining := file.Duration - start; remaining < dur {
			dur = remaining
		}

		chunkPath := filepath.Join(tempDir, fmt.Sprintf("chunk_%03d.mp3", i))
		_, err := s.runner.Run(ctx, s.ffmpegPath,
			"-v", "error",
			"-y",
			"-i", file.Path,
			"-ss", formatSeconds(start),
			"-t", formatSeconds(dur),
			"-vn",
			"-codec:a", "libmp3lame",
			"-q:a", "1",
			chunkPath,
		)
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return nil, false, models.WrapFault(models.KindInternal, err, "ffmpeg not available")
			}
			if ctx.Err() != nil {
				return nil, false, models.WrapFault(models.KindCanceled, ctx.Err(), "split canceled")
			}
			return nil, false, models.WrapFault(models.KindUnsplittable, err, "export window %d of %s", i, file.Base())
		}

		info, err := os.Stat(chunkPath)
		if err != nil {
			return nil, false, models.WrapFault(models.KindInternal, err, "stat exported chunk %d", i)
		}
		if info.Size() > sizeCeiling {
			return nil, true, nil
		}

		chunks = append(chunks, models.Chunk{
			Index:    i,
			Start:    start,
			Duration: dur,
			Size:     info.Size(),
			Path:     chunkPath,
		})
		start += dur
	}
	return chunks, false, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// clearDir empties tempDir between halving attempts, keeping the dir itself.
func clearDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		os.Remove(filepath.Join(dir, e.Name()))
	}
}
