// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	FilesProcessed *prometheus.CounterVec
	ChunksCreated  prometheus.Counter
	APIRequests    *prometheus.CounterVec
	Retries        prometheus.Counter
	APILatency     prometheus.Histogram
	ChunkBytes     prometheus.Histogram
	ActiveWorkers  prometheus.Gauge
}

// New registers the pipeline metrics on reg. Pass
// prometheus.DefaultRegisterer outside of tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcriber",
			Name:      "files_total",
			Help:      "Files that finished the pipeline, by outcome.",
		}, []string{"outcome"}),
		ChunksCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "transcriber",
			Name:      "chunks_created_total",
			Help:      "Chunks produced by the splitter.",
		}),
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transcriber",
			Name:      "api_requests_total",
			Help:      "Transcription API calls, by result kind.",
		}, []string{"result"}),
		Retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "transcriber",
			Name:      "retries_total",
			Help:      "Retried transcription attempts.",
		}),
		APILatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "transcriber",
			Name:      "api_latency_seconds",
			Help:      "Transcription API call latency.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		ChunkBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "transcriber",
			Name:      "chunk_bytes",
			Help:      "Uploaded chunk sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 6),
		}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "transcriber",
			Name:      "active_chunk_workers",
			Help:      "Chunk transcriptions currently in flight.",
		}),
	}
}

// Nop returns metrics bound to a throwaway registry, for wiring code paths
// that run without a status server.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
