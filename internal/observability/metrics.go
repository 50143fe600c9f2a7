package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions              prometheus.Gauge
	InterviewsStarted           prometheus.Counter
	Answers                     prometheus.Counter
	Questions                   *prometheus.CounterVec
	InterviewsCompleted         *prometheus.CounterVec
	Evaluations                 *prometheus.CounterVec
	Transcriptions              *prometheus.CounterVec
	TranscriptionAttempts       *prometheus.CounterVec
	TranscriptionAttemptSeconds prometheus.Histogram
	StoreWrites                 *prometheus.CounterVec

	attempts *AttemptWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of interview sessions currently in progress.",
		}),
		InterviewsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_started_total",
			Help:      "Interviews started.",
		}),
		Answers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers accepted.",
		}),
		Questions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions issued by kind.",
		}, []string{"kind"}),
		InterviewsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interviews_completed_total",
			Help:      "Interviews completed by reason.",
		}, []string{"reason"}),
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluation runs by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Transcriptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcription requests by final outcome.",
		}, []string{"outcome"}),
		TranscriptionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_attempts_total",
			Help:      "Individual transcription provider attempts by outcome.",
		}, []string{"outcome"}),
		TranscriptionAttemptSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_attempt_seconds",
			Help:      "Latency of individual transcription provider attempts.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		StoreWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Session store write-throughs by outcome.",
		}, []string{"outcome"}),

		attempts: NewAttemptWindow(256),
	}
}

// ObserveAttempt records one transcription provider attempt in both the
// Prometheus instruments and the rolling window.
func (m *Metrics) ObserveAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TranscriptionAttempts.WithLabelValues(outcome).Inc()
	m.TranscriptionAttemptSeconds.Observe(d.Seconds())
	m.attempts.Observe(outcome, float64(d.Milliseconds()))
}

// SnapshotAttempts exposes the rolling attempt window for the stats endpoint.
func (m *Metrics) SnapshotAttempts() AttemptSnapshot {
	if m == nil {
		return AttemptSnapshot{}
	}
	return m.attempts.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
