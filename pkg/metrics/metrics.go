package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Streaming metrics
	ConnectionsActive    prometheus.Gauge
	FramesProcessed      *prometheus.CounterVec
	FramesDropped        *prometheus.CounterVec
	AudioBytesAccumulated prometheus.Counter
	AudioWindowsFlushed  prometheus.Counter

	// Perception adapter metrics
	AdapterRequests *prometheus.CounterVec
	AdapterErrors   *prometheus.CounterVec
	AdapterLatency  *prometheus.HistogramVec

	// Fusion metrics
	UIEventsEmitted   *prometheus.CounterVec
	GesturesConfirmed *prometheus.CounterVec

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsStopped prometheus.Counter

	// Messaging metrics
	ReportsPublished      prometheus.Counter
	PublishErrors         prometheus.Counter
)

// Init initializes all metrics and registers them with a fresh registry.
// Safe to call more than once; only the first call takes effect.
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "omnisense_connections_active",
			Help: "Number of active streaming connections",
		})

		FramesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisense_frames_processed_total",
			Help: "Total number of video frames routed through the fusion engine",
		}, []string{"conn_uuid"})

		FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisense_frames_dropped_total",
			Help: "Total number of video frames dropped due to adapter failure",
		}, []string{"conn_uuid"})

		AudioBytesAccumulated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnisense_audio_bytes_accumulated_total",
			Help: "Total number of PCM bytes accepted into audio accumulators",
		})

		AudioWindowsFlushed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnisense_audio_windows_flushed_total",
			Help: "Total number of accumulated audio windows sent for transcription",
		})

		AdapterRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisense_adapter_requests_total",
			Help: "Total number of perception adapter calls",
		}, []string{"adapter"})

		AdapterErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisense_adapter_errors_total",
			Help: "Total number of failed perception adapter calls",
		}, []string{"adapter"})

		AdapterLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omnisense_adapter_latency_seconds",
			Help:    "Latency of perception adapter calls",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"adapter"})

		UIEventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisense_ui_events_emitted_total",
			Help: "Total number of UI events emitted by the fusion engine",
		}, []string{"type"})

		GesturesConfirmed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omnisense_gestures_confirmed_total",
			Help: "Total number of gestures confirmed by the stabilizer",
		}, []string{"gesture"})

		SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnisense_sessions_started_total",
			Help: "Total number of coaching sessions started",
		})

		SessionsStopped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnisense_sessions_stopped_total",
			Help: "Total number of coaching sessions stopped with a report",
		})

		ReportsPublished = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnisense_reports_published_total",
			Help: "Total number of session reports published to the message queue",
		})

		PublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnisense_publish_errors_total",
			Help: "Total number of failed message queue publishes",
		})

		registry.MustRegister(
			ConnectionsActive,
			FramesProcessed,
			FramesDropped,
			AudioBytesAccumulated,
			AudioWindowsFlushed,
			AdapterRequests,
			AdapterErrors,
			AdapterLatency,
			UIEventsEmitted,
			GesturesConfirmed,
			SessionsStarted,
			SessionsStopped,
			ReportsPublished,
			PublishErrors,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the metrics registry, or nil before Init.
func GetRegistry() *prometheus.Registry {
	return registry
}
