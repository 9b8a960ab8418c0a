package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the scheduling loops.
type Metrics struct {
	TicksTotal        *prometheus.CounterVec
	TickSeconds       *prometheus.HistogramVec
	DispatchesTotal   *prometheus.CounterVec
	TranscriptsStored prometheus.Counter
	TeardownsTotal    *prometheus.CounterVec
	EventErrorsTotal  *prometheus.CounterVec
}

// DefaultMetrics creates metrics on the default registerer.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new set of scheduler metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notetakerd_scheduler_ticks_total",
				Help: "Scheduler ticks run, by loop",
			},
			[]string{"loop"},
		),
		TickSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notetakerd_scheduler_tick_seconds",
				Help:    "Tick duration, by loop",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"loop"},
		),
		DispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notetakerd_bot_dispatches_total",
				Help: "Bot dispatch attempts, by result",
			},
			[]string{"result"},
		),
		TranscriptsStored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "notetakerd_transcripts_stored_total",
				Help: "Transcripts persisted by the poll loop",
			},
		),
		TeardownsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notetakerd_bot_teardowns_total",
				Help: "Bot teardown attempts, by result",
			},
			[]string{"result"},
		),
		EventErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notetakerd_scheduler_event_errors_total",
				Help: "Per-event errors skipped within a tick, by loop",
			},
			[]string{"loop"},
		),
	}
}
