// Package metrics holds the Prometheus instruments of the reminder pipeline.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "scry"

// Advance outcomes.
const (
	OutcomeAdvanced  = "advanced"
	OutcomeCompleted = "completed"
	OutcomeDisabled  = "disabled"
	OutcomeNotDue    = "not_due"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Generation and consumer outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeStale    = "stale"
	OutcomeHandled  = "handled"
)

// Metrics holds all reminder pipeline metrics
type Metrics struct {
	AdvanceTotal        *prometheus.CounterVec
	AdvanceDuration     prometheus.Histogram
	GenerationTotal     *prometheus.CounterVec
	GenerationRetries   prometheus.Counter
	PollDuration        prometheus.Histogram
	DueBatchSize        prometheus.Histogram
	JobsScheduled       *prometheus.CounterVec
	JobsConsumed        *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	WorkerQueueRejected prometheus.Counter
}

// New creates the metrics and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AdvanceTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "reminder",
			Name:      "advance_total",
			Help:      "Reminder advance attempts by outcome",
		}, []string{"trigger", "outcome"}),
		AdvanceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "reminder",
			Name:      "advance_duration_seconds",
			Help:      "Time spent advancing a single note",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		GenerationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "generation",
			Name:      "questions_total",
			Help:      "Generated review questions by outcome",
		}, []string{"outcome"}),
		GenerationRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "generation",
			Name:      "retries_total",
			Help:      "Retried text generation calls",
		}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "poller",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one poll tick",
			Buckets:   prometheus.DefBuckets,
		}),
		DueBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "poller",
			Name:      "due_notes",
			Help:      "Number of due notes found per tick",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		JobsScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "broker",
			Name:      "jobs_scheduled_total",
			Help:      "Reminder jobs published to the delayed queue",
		}, []string{"status"}),
		JobsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "broker",
			Name:      "jobs_consumed_total",
			Help:      "Reminder jobs received from the delayed queue by outcome",
		}, []string{"outcome"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Reminder notifications published",
		}, []string{"status"}),
		WorkerQueueRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "queue_rejected_total",
			Help:      "Tasks rejected because the worker queue was full",
		}),
	}
}

// ObserveAdvance records one advance attempt.
func (m *Metrics) ObserveAdvance(trigger, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AdvanceTotal.WithLabelValues(trigger, outcome).Inc()
	m.AdvanceDuration.Observe(d.Seconds())
}

// ObserveGeneration records whether a question came from the model or the fallback.
func (m *Metrics) ObserveGeneration(outcome string) {
	if m == nil {
		return
	}
	m.GenerationTotal.WithLabelValues(outcome).Inc()
}

// IncGenerationRetry counts one retried generation attempt.
func (m *Metrics) IncGenerationRetry() {
	if m == nil {
		return
	}
	m.GenerationRetries.Inc()
}

// ObservePoll records one poll tick.
func (m *Metrics) ObservePoll(d time.Duration, due int) {
	if m == nil {
		return
	}
	m.PollDuration.Observe(d.Seconds())
	m.DueBatchSize.Observe(float64(due))
}

// ObserveScheduled records a publish to the delayed queue.
func (m *Metrics) ObserveScheduled(err error) {
	if m == nil {
		return
	}
	m.JobsScheduled.WithLabelValues(status(err)).Inc()
}

// ObserveConsumed records what happened to a job taken off the delayed queue.
func (m *Metrics) ObserveConsumed(outcome string) {
	if m == nil {
		return
	}
	m.JobsConsumed.WithLabelValues(outcome).Inc()
}

// ObserveNotification records a publish to the real-time channel.
func (m *Metrics) ObserveNotification(err error) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(status(err)).Inc()
}

// IncQueueRejected counts a task dropped by a full worker queue.
func (m *Metrics) IncQueueRejected() {
	if m == nil {
		return
	}
	m.WorkerQueueRejected.Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
