package deployer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deploysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dess_deploys_total",
		Help: "Deploy pipeline runs by terminal result.",
	}, []string{"result"})

	deployDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dess_deploy_duration_seconds",
		Help:    "Wall-clock duration of full deploy pipeline runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	deploysInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dess_deploys_in_flight",
		Help: "Deploy pipelines currently executing.",
	})
)
