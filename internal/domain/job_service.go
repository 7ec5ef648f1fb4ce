package domain

import (
	"context"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppronobis/video-transcription-tool/internal/domain/stations"
	"github.com/ppronobis/video-transcription-tool/internal/metrics"
	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
	"github.com/ppronobis/video-transcription-tool/internal/retry"
)

// JobConfig carries the per-file pipeline knobs.
type JobConfig struct {
	SizeCeiling   int64
	TargetSeconds float64
	ChunkWorkers  int
	Model         string
	Policy        retry.Policy
}

// JobService runs one file through the five pipeline stations. A job either
// produces exactly one transcript or nothing at all; a single failed chunk
// fails the whole file and cancels its remaining chunk uploads.
type JobService struct {
	s1 *stations.S1Probe
	s2 *stations.S2Split
	s3 *stations.S3Transcribe
	s4 *stations.S4Reassemble
	s5 *stations.S5Write

	model        string
	chunkWorkers int
	metrics      *metrics.Metrics
	logger       *log.Logger
	notify       func(ports.ProgressEvent)
}

func NewJobService(
	prober ports.Prober,
	splitter ports.Splitter,
	transcriber ports.Transcriber,
	store ports.TranscriptStore,
	cfg JobConfig,
	m *metrics.Metrics,
	logger *log.Logger,
	notify func(ports.ProgressEvent),
) *JobService {
	workers := cfg.ChunkWorkers
	if workers < 1 {
		workers = 1
	}
	return &JobService{
		s1:           stations.NewS1Probe(prober, logger),
		s2:           stations.NewS2Split(splitter, cfg.SizeCeiling, cfg.TargetSeconds, logger),
		s3:           stations.NewS3Transcribe(transcriber, cfg.Policy, m, logger),
		s4:           stations.NewS4Reassemble(logger),
		s5:           stations.NewS5Write(store, logger),
		model:        cfg.Model,
		chunkWorkers: workers,
		metrics:      m,
		logger:       logger,
		notify:       notify,
	}
}

// ========================================================================
// PROCESS
// ========================================================================

// Process drives path through the pipeline and returns its terminal
// outcome. It never returns an error: failure is an outcome, and one file's
// outcome must not disturb the rest of the batch.
func (j *JobService) Process(ctx context.Context, path string) models.FileOutcome {
	start := time.Now()
	state := models.JobPending
	j.event(path, state, 0, 0)
	j.logger.Printf("[JOB][START] file=%s", filepath.Base(path))

	fail := func(err error) models.FileOutcome {
		kind := models.KindOf(err)
		j.logger.Printf("[JOB][FAIL] file=%s kind=%s err=%v", filepath.Base(path), kind, err)
		state = models.JobFailed
		j.eventErr(path, kind, err)
		j.metrics.FilesProcessed.WithLabelValues("failed").Inc()
		return models.FileOutcome{
			File:     path,
			State:    models.JobFailed,
			Kind:     kind,
			Message:  models.Message(err),
			Duration: time.Since(start),
		}
	}

	advance := func(to models.JobState, done, total int) error {
		if !models.ValidTransition(state, to) {
			return models.NewFault(models.KindInternal, "illegal job transition %s -> %s", state, to)
		}
		j.logger.Printf("[JOB][STATE] file=%s %s->%s", filepath.Base(path), state, to)
		state = to
		j.event(path, to, done, total)
		return nil
	}

	// S1 + S2: validate, probe, split.
	if err := advance(models.JobSplitting, 0, 0); err != nil {
		return fail(err)
	}
	file, err := j.s1.Run(ctx, path)
	if err != nil {
		return fail(err)
	}
	set, err := j.s2.Run(ctx, file)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if relErr := set.Release(); relErr != nil {
			j.logger.Printf("[JOB][CLEANUP-ERR] file=%s err=%v", file.Base(), relErr)
		}
	}()

	// S3: fan chunks out over the worker pool. The first terminal chunk
	// failure cancels the group context and aborts outstanding uploads.
	total := len(set.Chunks)
	j.metrics.ChunksCreated.Add(float64(total))
	if err := advance(models.JobTranscribing, 0, total); err != nil {
		return fail(err)
	}

	segs := make([]models.TranscriptSegment, total)
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.chunkWorkers)
	for _, chunk := range set.Chunks {
		g.Go(func() error {
			j.metrics.ActiveWorkers.Inc()
			defer j.metrics.ActiveWorkers.Dec()

			seg, err := j.s3.Run(gctx, chunk)
			if err != nil {
				return err
			}
			segs[chunk.Index] = seg
			j.eventChunk(path, chunk.Index, int(done.Add(1)), total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	// S4 + S5: reassemble in ordinal order, write the artifact.
	if err := advance(models.JobReassembling, total, total); err != nil {
		return fail(err)
	}
	result, err := j.s4.Run(set, segs)
	if err != nil {
		return fail(err)
	}
	result.Model = j.model

	outPath, err := j.s5.Run(result)
	if err != nil {
		return fail(err)
	}

	if err := advance(models.JobCompleted, total, total); err != nil {
		return fail(err)
	}
	j.metrics.FilesProcessed.WithLabelValues("completed").Inc()
	j.logger.Printf("[JOB][DONE] file=%s chunks=%d out=%s dur=%s",
		file.Base(), total, filepath.Base(outPath), time.Since(start).Round(time.Millisecond))

	return models.FileOutcome{
		File:           path,
		State:          models.JobCompleted,
		TranscriptPath: outPath,
		Chunks:         total,
		Duration:       time.Since(start),
	}
}

func (j *JobService) event(file string, state models.JobState, done, total int) {
	if j.notify == nil {
		return
	}
	j.notify(ports.ProgressEvent{
		File:        file,
		State:       state,
		ChunksDone:  done,
		ChunksTotal: total,
		At:          time.Now(),
	})
}

func (j *JobService) eventChunk(file string, index, done, total int) {
	if j.notify == nil {
		return
	}
	j.notify(ports.ProgressEvent{
		File:        file,
		State:       models.JobTranscribing,
		ChunkIndex:  index,
		ChunksDone:  done,
		ChunksTotal: total,
		At:          time.Now(),
	})
}

func (j *JobService) eventErr(file string, kind models.ErrorKind, err error) {
	if j.notify == nil {
		return
	}
	j.notify(ports.ProgressEvent{
		File:    file,
		State:   models.JobFailed,
		Kind:    kind,
		Message: models.Message(err),
		At:      time.Now(),
	})
}
