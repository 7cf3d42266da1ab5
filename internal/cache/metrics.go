package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *cacheMetrics
	metricsOnce   sync.Once
)

type cacheMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	size   prometheus.Gauge
}

// metrics registers the collectors on first use. Every Cache in the process
// shares them.
func metrics() *cacheMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &cacheMetrics{
			hits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "hybridq_cache_hits_total",
				Help: "Total number of result cache hits",
			}),
			misses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "hybridq_cache_misses_total",
				Help: "Total number of result cache misses, including expired and stale entries",
			}),
			size: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "hybridq_cache_entries",
				Help: "Number of entries held by the most recently updated result cache",
			}),
		}
	})
	return globalMetrics
}
