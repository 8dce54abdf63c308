package postgres

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vexgraph",
			Subsystem: "store",
			Name:      "queries_total",
			Help:      "Total number of database queries issued by the store package.",
		},
		[]string{"query"},
	)
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vexgraph",
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries issued by the store package.",
		},
		[]string{"query"},
	)
)

func observe(query string, start time.Time) {
	queryCounter.WithLabelValues(query).Add(1)
	queryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}
