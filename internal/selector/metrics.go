package selector

import "github.com/prometheus/client_golang/prometheus"

var (
	activeEngine = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "switchyard_active_engine",
			Help: "1 for the currently selected engine kind, 0 for all others.",
		},
		[]string{"kind"},
	)

	selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchyard_selections_total",
			Help: "Total number of selection cycles, by chosen engine kind.",
		},
		[]string{"kind"},
	)

	reconfiguresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "switchyard_reconfigures_total",
			Help: "Total number of explicit reconfigure calls.",
		},
	)

	probeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "switchyard_probe_duration_seconds",
			Help:    "Environment probe duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(activeEngine)
	prometheus.MustRegister(selectionsTotal)
	prometheus.MustRegister(reconfiguresTotal)
	prometheus.MustRegister(probeDuration)
}
