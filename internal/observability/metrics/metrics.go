package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "medpulse"

// WorkflowMetrics exposes counters/histograms for the appointment lifecycle.
type WorkflowMetrics struct {
	transitionsTotal   *prometheus.CounterVec
	conflictsTotal     *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	cascadeFailures    *prometheus.CounterVec
	textgenTotal       *prometheus.CounterVec
	textgenLatency     *prometheus.HistogramVec
	remindersTotal     *prometheus.CounterVec
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"from", "to"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "conflict_warnings_total",
			Help:      "Staff scheduling conflict warnings, by whether they were overridden",
		}, []string{"overridden"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Notification records created",
		}, []string{"type", "status"}),
		cascadeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "cascade_failures_total",
			Help:      "Notification writes that failed after a committed transition",
		}, []string{"stage"}),
		textgenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "textgen",
			Name:      "requests_total",
			Help:      "Text generation requests by outcome",
		}, []string{"kind", "outcome"}),
		textgenLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "textgen",
			Name:      "latency_seconds",
			Help:      "Latency of text generation calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Reminder dispatch attempts by result",
		}, []string{"type", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.conflictsTotal, m.notificationsTotal,
		m.cascadeFailures, m.textgenTotal, m.textgenLatency, m.remindersTotal)
	return m
}

func (m *WorkflowMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *WorkflowMetrics) ObserveConflict(overridden bool) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(boolLabel(overridden)).Inc()
}

func (m *WorkflowMetrics) ObserveNotification(notificationType, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(notificationType, status).Inc()
}

func (m *WorkflowMetrics) ObserveCascadeFailure(stage string) {
	if m == nil {
		return
	}
	m.cascadeFailures.WithLabelValues(stage).Inc()
}

// ObserveTextGeneration satisfies textgen.Recorder.
func (m *WorkflowMetrics) ObserveTextGeneration(kind string, fallback bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	m.textgenTotal.WithLabelValues(kind, outcome).Inc()
	m.textgenLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *WorkflowMetrics) ObserveReminder(notificationType, result string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(notificationType, result).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
