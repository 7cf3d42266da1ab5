package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/hybridq/internal/query"
)

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridq",
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "Queries processed, by classified type and cache status",
		},
		[]string{"type", "cache_status"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybridq",
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)

func observeQuery(typ query.Type, status CacheStatus, d time.Duration) {
	queriesTotal.WithLabelValues(string(typ), string(status)).Inc()
	queryDuration.WithLabelValues(string(typ)).Observe(d.Seconds())
}
