// Package metrics provides Prometheus metrics for sprite resolution,
// generation, learning, and the HTTP API.
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sprite_memory"

// Recorder holds the collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	scenes            *prometheus.CounterVec
	generations       *prometheus.CounterVec
	generationLatency prometheus.Histogram
	reinforcements    *prometheus.CounterVec
	sprites           prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// Config configures a Recorder.
type Config struct {
	// Registry to use; a new one is created when nil.
	Registry *prometheus.Registry

	// Buckets for latency histograms in seconds.
	LatencyBuckets []float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// New creates a Recorder and registers its collectors.
func New(cfg Config) *Recorder {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := &Recorder{registry: registry}

	r.scenes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "scenes_total",
			Help:      "Scenes resolved, by sprite source",
		},
		[]string{"source"},
	)
	r.generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "generations_total",
			Help:      "Sprite generation calls, by status",
		},
		[]string{"status"},
	)
	r.generationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "generation_latency_seconds",
			Help:      "Sprite generation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)
	r.reinforcements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "learn",
			Name:      "reinforcements_total",
			Help:      "Reinforcement signals applied, by origin",
		},
		[]string{"origin"},
	)
	r.sprites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "sprites",
			Help:      "Sprites currently held by the store",
		},
	)
	r.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by route, method, and status code",
		},
		[]string{"route", "method", "code"},
	)
	r.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"route", "method"},
	)

	registry.MustRegister(
		r.scenes,
		r.generations,
		r.generationLatency,
		r.reinforcements,
		r.sprites,
		r.httpRequests,
		r.httpLatency,
	)
	return r
}

// RecordScene counts one resolved scene.
func (r *Recorder) RecordScene(source string) {
	if r == nil {
		return
	}
	r.scenes.WithLabelValues(source).Inc()
}

// RecordGeneration counts one generation call and its latency.
func (r *Recorder) RecordGeneration(latency time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.generations.WithLabelValues(status).Inc()
	r.generationLatency.Observe(latency.Seconds())
}

// RecordReinforcement counts n reinforcement signals from origin.
func (r *Recorder) RecordReinforcement(origin string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.reinforcements.WithLabelValues(origin).Add(float64(n))
}

// SetSprites sets the store size gauge.
func (r *Recorder) SetSprites(n int) {
	if r == nil {
		return
	}
	r.sprites.Set(float64(n))
}

// RecordHTTP counts one HTTP request.
func (r *Recorder) RecordHTTP(route, method string, code int, latency time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.httpLatency.WithLabelValues(route, method).Observe(latency.Seconds())
}

// Handler returns the HTTP handler that serves the registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
