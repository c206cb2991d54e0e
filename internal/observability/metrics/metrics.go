// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "violin_coach"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsEnded   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Frame metrics
	FramesProcessed prometheus.Counter
	FramesDropped   prometheus.Counter
	FrameDuration   prometheus.Histogram

	// Pipeline metrics
	NotesRecorded      prometheus.Counter
	DirectionChanges   *prometheus.CounterVec
	PostureAssessments *prometheus.CounterVec
	RhythmOutcomes     *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of practice sessions started",
		}),
		SessionsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Total number of practice sessions ended",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active practice sessions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of practice sessions in seconds",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),

		// Frame metrics
		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Total number of keypoint frames processed",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of keypoint frames dropped while another was in flight",
		}),
		FrameDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_processing_duration_seconds",
			Help:      "Time spent processing one keypoint frame",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),

		// Pipeline metrics
		NotesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_recorded_total",
			Help:      "Total number of note events recorded",
		}),
		DirectionChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bow_direction_changes_total",
			Help:      "Total number of committed bow direction changes",
		}, []string{"direction"}),
		PostureAssessments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posture_assessments_total",
			Help:      "Total number of posture assessments by tier",
		}, []string{"status"}),
		RhythmOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rhythm_strokes_total",
			Help:      "Total number of scored rhythm strokes by outcome",
		}, []string{"outcome"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a practice session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a practice session ending.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsEnded.Inc()
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordFrame records one processed keypoint frame.
func (m *Metrics) RecordFrame(durationSeconds float64) {
	m.FramesProcessed.Inc()
	m.FrameDuration.Observe(durationSeconds)
}

// RecordFrameDropped records a frame dropped under overload.
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// RecordNote records one recorded note event.
func (m *Metrics) RecordNote() {
	m.NotesRecorded.Inc()
}

// RecordDirectionChange records a committed bow direction change.
func (m *Metrics) RecordDirectionChange(direction string) {
	m.DirectionChanges.WithLabelValues(direction).Inc()
}

// RecordPostureAssessment records a posture assessment tier.
func (m *Metrics) RecordPostureAssessment(status string) {
	m.PostureAssessments.WithLabelValues(status).Inc()
}

// RecordRhythmOutcome records a scored rhythm stroke.
func (m *Metrics) RecordRhythmOutcome(outcome string) {
	m.RhythmOutcomes.WithLabelValues(outcome).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
