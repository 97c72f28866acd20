// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	shardsTotal       *prometheus.CounterVec
	appIDsTotal       prometheus.Counter
	shardFetchSeconds prometheus.Histogram
	activeWorkers     prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		shardsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_shards_total",
				Help: "Total number of sitemap shards processed, labeled by outcome.",
			},
			[]string{"status"},
		)

		appIDsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_app_ids_total",
				Help: "Total number of app identifiers extracted from shard records.",
			},
		)

		shardFetchSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_shard_fetch_duration_seconds",
				Help:    "Histogram of end-to-end shard processing latencies.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_workers",
				Help: "Number of workers currently processing a shard.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes the /metrics endpoint on addr in the background.
func Serve(addr string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := chi.NewRouter()
	router.Handle("/metrics", Handler())
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, router); err != nil {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()
}

// ObserveShard increments the shard counter for the given outcome.
func ObserveShard(status string) {
	if shardsTotal != nil {
		shardsTotal.WithLabelValues(status).Inc()
	}
}

// AddAppIDs adds to the extracted identifier counter.
func AddAppIDs(n int) {
	if appIDsTotal != nil && n > 0 {
		appIDsTotal.Add(float64(n))
	}
}

// ObserveShardFetch records the duration of one shard's pipeline.
func ObserveShardFetch(d time.Duration) {
	if shardFetchSeconds != nil {
		shardFetchSeconds.Observe(d.Seconds())
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}
