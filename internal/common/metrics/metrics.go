// Package metrics exports purchase flow counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PurchaseMetrics implements purchase.Recorder.
type PurchaseMetrics struct {
	flowsStarted  prometheus.Counter
	stepsEntered  *prometheus.CounterVec
	orchestration *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewPurchaseMetrics creates the collectors and registers them with reg.
func NewPurchaseMetrics(reg prometheus.Registerer) (*PurchaseMetrics, error) {
	m := &PurchaseMetrics{
		flowsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "propflow",
			Subsystem: "purchase",
			Name:      "flows_started_total",
			Help:      "Purchase flows started.",
		}),
		stepsEntered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propflow",
			Subsystem: "purchase",
			Name:      "steps_entered_total",
			Help:      "Transitions into each purchase step.",
		}, []string{"step"}),
		orchestration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propflow",
			Subsystem: "purchase",
			Name:      "orchestrations_total",
			Help:      "Payment orchestrations by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "propflow",
			Subsystem: "purchase",
			Name:      "orchestration_duration_seconds",
			Help:      "Time from submit to payment outcome.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 30},
		}),
	}

	for _, c := range []prometheus.Collector{m.flowsStarted, m.stepsEntered, m.orchestration, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PurchaseMetrics) FlowStarted() {
	m.flowsStarted.Inc()
}

func (m *PurchaseMetrics) StepEntered(step string) {
	m.stepsEntered.WithLabelValues(step).Inc()
}

func (m *PurchaseMetrics) OrchestrationFinished(outcome string, elapsed time.Duration) {
	m.orchestration.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}
