package exporter

import "github.com/prometheus/client_golang/prometheus"

// OpsMetrics are the exporter's own operational metrics, separate from
// the cost gauge itself.
type OpsMetrics struct {
	CycleDuration prometheus.Gauge
	CyclesTotal   prometheus.Counter
	QueryFailures *prometheus.CounterVec
}

// NewOpsMetrics creates and registers the operational metrics.
func NewOpsMetrics(reg prometheus.Registerer) *OpsMetrics {
	m := &OpsMetrics{
		CycleDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "azure_cost_exporter_cycle_duration_seconds",
			Help: "Duration of the last cost fetch cycle in seconds",
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "azure_cost_exporter_cycles_total",
			Help: "Total number of completed cost fetch cycles since startup",
		}),
		QueryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "azure_cost_exporter_query_failures_total",
				Help: "Total number of failed cost queries since startup",
			},
			[]string{"subscription_id"},
		),
	}

	reg.MustRegister(m.CycleDuration, m.CyclesTotal, m.QueryFailures)
	return m
}
