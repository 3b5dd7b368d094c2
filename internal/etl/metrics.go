package etl

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	recordsTotal  *prometheus.CounterVec
	batchesTotal  *prometheus.CounterVec
	rollbackTotal *prometheus.CounterVec

	batchDuration *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		recordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ida",
			Name:      "records_total",
			Help:      "Total number of legacy records processed by import batches.",
		}, []string{"entity", "result"}),
		batchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ida",
			Name:      "batches_total",
			Help:      "Total number of import batches.",
		}, []string{"result"}),
		rollbackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ida",
			Name:      "rollback_total",
			Help:      "Total number of session rollbacks.",
		}, []string{"result"}),
		batchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ida",
			Name:      "batch_duration_seconds",
			Help:      "Duration of import batches including the commit.",
			Buckets: []float64{
				0.01, 0.05,
				0.1, 0.5,
				1, 2, 5, 10,
				30, 60, 120,
			},
		}, []string{"result"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
