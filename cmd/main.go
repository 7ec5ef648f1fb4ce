package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ppronobis/video-transcription-tool/internal/config"
	"github.com/ppronobis/video-transcription-tool/internal/delivery"
	ws "github.com/ppronobis/video-transcription-tool/internal/delivery/ws"
	"github.com/ppronobis/video-transcription-tool/internal/domain"
	"github.com/ppronobis/video-transcription-tool/internal/infra"
	"github.com/ppronobis/video-transcription-tool/internal/metrics"
	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
	"github.com/ppronobis/video-transcription-tool/internal/retry"
)

func main() {

	// FLAGS
	configPath := flag.String("config", "", "path to YAML config file")
	mode := flag.String("mode", "auto", "auto, batch, retry or prune")
	flag.Parse()

	// LOGGER
	zcore, _ := zap.NewProduction()
	zl := logger.NewZapLogger(zcore.Sugar())

	// CONFIG
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("config: " + err.Error())
	}

	// METRICS
	m := metrics.New(prometheus.DefaultRegisterer)

	// INFRA
	prober := infra.NewFFmpegProber(cfg.Chunking.FFprobePath)
	splitter := infra.NewFFmpegSplitter(cfg.Chunking.FFmpegPath)
	whisper := infra.NewWhisperClient(cfg.API.Endpoint, cfg.API.Key, cfg.API.Model, cfg.API.Timeout(), m)
	store := infra.NewTranscriptStore(cfg.Paths.OutputDir)
	failures := infra.NewFailureLog(cfg.Paths.FailureLog)

	// PRUNE (standalone mode, nothing else to wire)
	if *mode == "prune" {
		kept, deleted, err := store.Prune()
		if err != nil {
			panic("prune: " + err.Error())
		}
		log.Printf("[PRUNE][DONE] kept=%d deleted=%d", kept, deleted)
		return
	}

	// SIGNALS
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Printf("[MAIN] received %s, canceling run", s)
		cancel()
	}()

	// POSTGRES (optional run archive)
	var archive ports.RunArchive = infra.NopArchive{}
	if cfg.Archive.DatabaseURL != "" {
		pool, err := infra.NewPostgresPool(ctx, cfg.Archive.DatabaseURL)
		if err != nil {
			panic("cannot connect pgxpool: " + err.Error())
		}
		defer pool.Close()

		repo := infra.NewRunRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			panic("archive schema: " + err.Error())
		}
		archive = repo
	}

	// SERVICES
	batch := domain.NewBatchService(prober, splitter, whisper, store, failures, archive, m, domain.BatchConfig{
		FileWorkers: cfg.Workers.Files,
		LogsDir:     cfg.Paths.LogsDir,
		Job: domain.JobConfig{
			SizeCeiling:   cfg.Chunking.SizeCeilingBytes,
			TargetSeconds: cfg.Chunking.TargetChunkSeconds,
			ChunkWorkers:  cfg.Workers.Chunks,
			Model:         cfg.API.Model,
			Policy: retry.Policy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				BaseDelay:   cfg.Retry.BaseDelay(),
				MaxDelay:    cfg.Retry.MaxDelay(),
				QuotaDelay:  cfg.Retry.QuotaDelay(),
				Jitter:      cfg.Retry.Jitter,
			},
		},
	})

	// WS HUB
	hub := ws.NewHub()

	// BROADCAST LISTENER
	go func() {
		for ev := range batch.Events() {
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Printf("[SEND][ERR] json marshal failed: %v", err)
				continue
			}
			hub.SendToRoom(ev.RunID, payload)
			hub.SendToRoom(ws.AllRuns, payload)
		}
	}()

	// STATUS SERVER (optional)
	if cfg.Status.Addr != "" {
		hStatus := delivery.NewStatusHandler(archive, zl)

		r := chi.NewRouter()

		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-Auth"},
			AllowCredentials: true,
		}))
		if cfg.Status.AuthToken != "" {
			r.Use(delivery.AuthMiddleware(cfg.Status.AuthToken))
		}

		delivery.RegisterRoutes(r, hStatus)
		r.Get("/ws", ws.SubscribeHandler(hub))
		r.Handle("/metrics", promhttp.Handler())

		go func() {
			zl.Log(logger.LogEntry{
				Level:   "info",
				Message: "status server started",
				Fields:  map[string]any{"addr": cfg.Status.Addr},
			})
			if err := http.ListenAndServe(cfg.Status.Addr, r); err != nil {
				zl.Log(logger.LogEntry{
					Level:   "error",
					Message: "status server crashed",
					Error:   err,
				})
			}
		}()
	}

	// RUN
	summary, err := runMode(ctx, batch, failures, cfg, *mode)
	if err != nil {
		panic("run: " + err.Error())
	}
	if summary.RunID == "" {
		return
	}

	log.Printf("[MAIN][DONE] run=%s total=%d ok=%d failed=%d in %s",
		summary.RunID, summary.Total, summary.Succeeded, len(summary.Failed),
		summary.Duration.Round(time.Millisecond))
	for _, rec := range summary.Failed {
		log.Printf("[MAIN][FAILED] file=%s kind=%s msg=%s", rec.Path, rec.Kind, rec.Message)
	}
	if len(summary.Failed) > 0 {
		log.Printf("[MAIN] run again to retry failed files")
	}
}

// runMode picks the file set for the requested mode. Auto retries
// outstanding failures first when any exist and scans the input directory
// otherwise, so a rerun after a bad batch picks up where it left off.
func runMode(ctx context.Context, batch *domain.BatchService, failures ports.FailureLog, cfg *config.Config, mode string) (models.BatchSummary, error) {
	switch mode {
	case "retry":
		return batch.RunFailed(ctx)
	case "batch":
		return runScan(ctx, batch, cfg)
	case "auto":
		outstanding, err := failures.Outstanding()
		if err != nil {
			return models.BatchSummary{}, err
		}
		if len(outstanding) > 0 {
			log.Printf("[MAIN] %d previously failed files, retrying those first", len(outstanding))
			return batch.RunFailed(ctx)
		}
		return runScan(ctx, batch, cfg)
	default:
		return models.BatchSummary{}, fmt.Errorf("unknown mode %q", mode)
	}
}

func runScan(ctx context.Context, batch *domain.BatchService, cfg *config.Config) (models.BatchSummary, error) {
	files, err := domain.ScanInputDir(cfg.Paths.InputDir)
	if err != nil {
		return models.BatchSummary{}, err
	}
	if len(files) == 0 {
		log.Printf("[MAIN] no supported files in %s, put media there and rerun", cfg.Paths.InputDir)
		return models.BatchSummary{}, nil
	}
	log.Printf("[MAIN] found %d files in %s", len(files), cfg.Paths.InputDir)
	return batch.Run(ctx, files)
}
