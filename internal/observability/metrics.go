package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome statuses recorded for finished entries.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusRejected  = "rejected"
	StatusClosed    = "closed"
)

type sequencerMetrics struct {
	queueSize    *prometheus.GaugeVec
	submitTotal  *prometheus.CounterVec
	outcomeTotal *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	waitDuration *prometheus.HistogramVec

	scheduleTicks *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *sequencerMetrics
)

func getMetrics() *sequencerMetrics {
	metricsOnce.Do(func() {
		m := &sequencerMetrics{
			queueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "sequencer_queue_size",
					Help: "Entries waiting to run, by sequencer.",
				},
				[]string{"sequencer"},
			),
			submitTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sequencer_submit_total",
					Help: "Total accepted submissions by sequencer.",
				},
				[]string{"sequencer"},
			),
			outcomeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sequencer_outcome_total",
					Help: "Entries reaching a terminal state, by sequencer and status.",
				},
				[]string{"sequencer", "status"},
			),
			taskDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sequencer_task_duration_seconds",
					Help:    "Operation execution duration in seconds by sequencer.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"sequencer"},
			),
			waitDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sequencer_wait_duration_seconds",
					Help:    "Time entries spent queued before starting, by sequencer.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"sequencer"},
			),
			scheduleTicks: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "schedule_ticks_total",
					Help: "Scheduled submissions by key and status.",
				},
				[]string{"key", "status"},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.submitTotal,
			m.outcomeTotal,
			m.taskDuration,
			m.waitDuration,
			m.scheduleTicks,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordSubmit(sequencer string, queueSize int) {
	m := getMetrics()
	m.submitTotal.WithLabelValues(sequencer).Inc()
	m.queueSize.WithLabelValues(sequencer).Set(float64(queueSize))
}

// Forget drops every series labelled with sequencer. Called once a sequencer is closed so
// short-lived names do not accumulate.
func Forget(sequencer string) {
	m := getMetrics()
	m.queueSize.DeleteLabelValues(sequencer)
	m.submitTotal.DeleteLabelValues(sequencer)
	m.taskDuration.DeleteLabelValues(sequencer)
	m.waitDuration.DeleteLabelValues(sequencer)
	m.outcomeTotal.DeletePartialMatch(prometheus.Labels{"sequencer": sequencer})
}

func RecordStart(sequencer string, wait time.Duration, queueSize int) {
	m := getMetrics()
	m.waitDuration.WithLabelValues(sequencer).Observe(wait.Seconds())
	m.queueSize.WithLabelValues(sequencer).Set(float64(queueSize))
}

// RecordOutcome counts a terminal entry. Duration is observed only for entries that ran.
func RecordOutcome(sequencer, status string, duration time.Duration, queueSize int) {
	m := getMetrics()
	m.outcomeTotal.WithLabelValues(sequencer, status).Inc()
	if status == StatusCompleted || status == StatusFailed {
		m.taskDuration.WithLabelValues(sequencer).Observe(duration.Seconds())
	}
	m.queueSize.WithLabelValues(sequencer).Set(float64(queueSize))
}

func RecordScheduleTick(key string, success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().scheduleTicks.WithLabelValues(key, status).Inc()
}
