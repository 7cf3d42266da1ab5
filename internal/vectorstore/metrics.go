package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsAdded counts documents written, by backend.
	DocumentsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridq",
			Subsystem: "vectorstore",
			Name:      "documents_added_total",
			Help:      "Total number of documents written to the vector store",
		},
		[]string{"backend"},
	)

	// OperationDuration tracks backend call latency.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybridq",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation", "result"},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
