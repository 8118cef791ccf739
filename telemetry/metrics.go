package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adaptive-ccl/ampccl/common"
)

// Metrics is the optional Prometheus export for the adaptive split engine.
// It is purely observational — nothing in the dispatch hot path depends on
// it being registered, matching the collaborator's read-only relationship
// to the rest of the package described in SPEC_FULL.md §3.
type Metrics struct {
	Alpha       *prometheus.GaugeVec
	FastBW      *prometheus.GaugeVec
	PCIeBW      *prometheus.GaugeVec
	SplitBytes  *prometheus.HistogramVec
	Collectives *prometheus.CounterVec
}

// NewMetrics builds a Metrics bundle and registers it with reg. Passing a
// fresh prometheus.NewRegistry() in tests avoids colliding with the global
// default registry across parallel test packages.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Alpha: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ampccl",
			Name:      "alpha",
			Help:      "Fraction of payload bytes routed to the fast backend, by collective kind.",
		}, []string{"op"}),
		FastBW: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ampccl",
			Name:      "fast_bandwidth_gbps",
			Help:      "Last observed fast-backend bandwidth in GB/s, by collective kind.",
		}, []string{"op"}),
		PCIeBW: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ampccl",
			Name:      "pcie_bandwidth_gbps",
			Help:      "Last observed PCIe-backend bandwidth in GB/s, by collective kind.",
		}, []string{"op"}),
		SplitBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ampccl",
			Name:      "split_bytes",
			Help:      "Bytes routed to each backend per launch.",
			Buckets:   prometheus.ExponentialBuckets(4096, 4, 10),
		}, []string{"op", "backend"}),
		Collectives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ampccl",
			Name:      "collectives_dispatched_total",
			Help:      "Collectives routed through VirtualCollective, by kind and outcome.",
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(m.Alpha, m.FastBW, m.PCIeBW, m.SplitBytes, m.Collectives)
	return m
}

// Observe records one completed collective's stats against op.
func (m *Metrics) Observe(op common.CollectiveType, alpha float64, stat ExecStat) {
	if m == nil {
		return
	}
	label := op.String()
	m.Alpha.WithLabelValues(label).Set(alpha)
	if bw := stat.FastBandwidth(); bw > 0 {
		m.FastBW.WithLabelValues(label).Set(bw)
	}
	if bw := stat.PCIeBandwidth(); bw > 0 {
		m.PCIeBW.WithLabelValues(label).Set(bw)
	}
	m.SplitBytes.WithLabelValues(label, "fast").Observe(float64(stat.FastBytes))
	m.SplitBytes.WithLabelValues(label, "pcie").Observe(float64(stat.PCIeBytes))

	outcome := "ok"
	if !stat.FastSuccess || !stat.PCIeSuccess {
		outcome = "error"
	}
	m.Collectives.WithLabelValues(label, outcome).Inc()
}
