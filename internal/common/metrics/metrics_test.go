package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propflow/internal/common/metrics"
	"propflow/internal/purchase"
)

var _ purchase.Recorder = (*metrics.PurchaseMetrics)(nil)

func TestPurchaseMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPurchaseMetrics(reg)
	require.NoError(t, err)

	m.FlowStarted()
	m.FlowStarted()
	m.StepEntered("payment_type")
	m.StepEntered("confirmation")
	m.StepEntered("confirmation")
	m.OrchestrationFinished("succeeded", 2*time.Second)
	m.OrchestrationFinished("failed", 3*time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			name := f.GetName()
			for _, l := range metric.GetLabel() {
				name += "/" + l.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				values[name] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				values[name] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, 2.0, values["propflow_purchase_flows_started_total"])
	assert.Equal(t, 1.0, values["propflow_purchase_steps_entered_total/payment_type"])
	assert.Equal(t, 2.0, values["propflow_purchase_steps_entered_total/confirmation"])
	assert.Equal(t, 1.0, values["propflow_purchase_orchestrations_total/succeeded"])
	assert.Equal(t, 1.0, values["propflow_purchase_orchestrations_total/failed"])
	assert.Equal(t, 2.0, values["propflow_purchase_orchestration_duration_seconds"])
}

func TestPurchaseMetricsRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewPurchaseMetrics(reg)
	require.NoError(t, err)

	_, err = metrics.NewPurchaseMetrics(reg)
	assert.Error(t, err)
}
