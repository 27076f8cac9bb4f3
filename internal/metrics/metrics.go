// Package metrics holds the Prometheus collectors of the narrator service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Generation metrics, labelled by pipeline (text, audio, image) and
	// result (ok or an error kind).
	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec

	// Audio metrics
	StateTransitions *prometheus.CounterVec
	AudioBytes       prometheus.Counter
	AudioDuration    prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry that also carries the
// Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "narrator_generations_total",
			Help: "Total number of generations by pipeline and result",
		}, []string{"pipeline", "result"}),
		GenerationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "narrator_generation_duration_seconds",
			Help:    "Time spent per generation",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"pipeline"}),
		StateTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "narrator_audio_state_transitions_total",
			Help: "Audio orchestrator state changes",
		}, []string{"from", "to"}),
		AudioBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "narrator_audio_pcm_bytes_total",
			Help: "PCM bytes delivered in finished WAV containers",
		}),
		AudioDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "narrator_audio_duration_seconds",
			Help:    "Playback length of finished narrations",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "narrator_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "narrator_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveGeneration records one finished generation.
func (m *Metrics) ObserveGeneration(pipeline, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(pipeline, result).Inc()
	m.GenerationDuration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
}

// ObserveTransition counts an orchestrator state change.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// ObserveAudio records the size of a finished container.
func (m *Metrics) ObserveAudio(pcmBytes int, d time.Duration) {
	if m == nil {
		return
	}
	m.AudioBytes.Add(float64(pcmBytes))
	m.AudioDuration.Observe(d.Seconds())
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
