package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchyard_dispatches_total",
			Help: "Total number of dispatched operations.",
		},
		[]string{"engine", "operation", "status"},
	)

	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchyard_dispatch_duration_seconds",
			Help:    "Operation handler duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine", "operation"},
	)

	dispatchesInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "switchyard_dispatches_in_flight",
			Help: "Dispatches currently executing, by engine kind.",
		},
		[]string{"engine"},
	)
)

func init() {
	prometheus.MustRegister(dispatchesTotal)
	prometheus.MustRegister(dispatchDuration)
	prometheus.MustRegister(dispatchesInFlight)
}
