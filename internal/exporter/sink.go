package exporter

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opscost/azure-cost-exporter/internal/config"
)

// MetricName is the gauge the daily cost values are written to
const MetricName = "azure_daily_cost_usd"

// Sink receives one exposed point per label set. Writes are upserts:
// the latest value for a label set wins, and label sets not written in
// a cycle keep their last value.
type Sink interface {
	Set(labels map[string]string, value float64)
}

// LabelNames derives the fixed label schema of the cost gauge: the key
// set of the first target account, the constant ChargeType label and
// one label per configured group. Sorted for a stable registration
// order.
func LabelNames(cfg *config.Config) []string {
	set := make(map[string]struct{})
	for k := range cfg.TargetAccounts[0] {
		set[k] = struct{}{}
	}
	set[LabelChargeType] = struct{}{}
	if cfg.GroupBy.Enabled {
		for _, g := range cfg.GroupBy.Groups {
			set[g.LabelName] = struct{}{}
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GaugeSink writes points to a prometheus GaugeVec
type GaugeSink struct {
	gauge *prometheus.GaugeVec
}

var _ Sink = (*GaugeSink)(nil)

// NewGaugeSink registers the daily cost gauge and returns a sink
// writing to it.
func NewGaugeSink(reg prometheus.Registerer, cfg *config.Config) *GaugeSink {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricName,
			Help: "Daily cost of an Azure account in USD",
		},
		LabelNames(cfg),
	)
	reg.MustRegister(gauge)
	return &GaugeSink{gauge: gauge}
}

// Set writes one point, overwriting any previous value for the same
// label combination.
func (s *GaugeSink) Set(labels map[string]string, value float64) {
	s.gauge.With(labels).Set(value)
}
