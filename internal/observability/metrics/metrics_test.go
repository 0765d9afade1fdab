package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics(reg)

	m.ObserveTransition("pending", "scheduled")
	m.ObserveTransition("pending", "scheduled")
	m.ObserveTransition("", "pending")
	m.ObserveConflict(true)
	m.ObserveNotification("reminder_24h", "pending")
	m.ObserveCascadeFailure("create")
	m.ObserveTextGeneration("reminder", true, 25*time.Millisecond)
	m.ObserveReminder("reminder_2h", "sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("pending", "scheduled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("none", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflictsTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.textgenTotal.WithLabelValues("reminder", "fallback")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.textgenTotal.WithLabelValues("reminder", "ok")))
}

func TestWorkflowMetricsHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics(reg)
	m.ObserveTextGeneration("welcome", false, 200*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "medpulse_textgen_latency_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	assert.Equal(t, uint64(1), hist.GetSampleCount())
	assert.InDelta(t, 0.2, hist.GetSampleSum(), 0.001)
}

func TestWorkflowMetricsNilSafe(t *testing.T) {
	var m *WorkflowMetrics
	m.ObserveTransition("pending", "rejected")
	m.ObserveConflict(false)
	m.ObserveNotification("welcome", "sent")
	m.ObserveCascadeFailure("purge")
	m.ObserveTextGeneration("welcome", false, time.Second)
	m.ObserveReminder("reminder_24h", "skipped")
}
