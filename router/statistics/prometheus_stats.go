package statistics

import (
	"time"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "fedrouter_store_operation_duration_seconds",
		Help: "Duration of store operations in seconds",
		Buckets: []float64{
			0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0,
		},
	}, []string{"store", "op"})

	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fedrouter_store_operation_errors_total",
		Help: "Failed store operations by error code",
	}, []string{"store", "op", "code"})

	routedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fedrouter_routed_records_total",
		Help: "Records committed to a store",
	}, []string{"dataset", "store"})

	rejectedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fedrouter_rejected_records_total",
		Help: "Records that were not written, by error code",
	}, []string{"dataset", "code"})

	partialFederations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fedrouter_partial_federations_total",
		Help: "Federated reads answered by only part of the candidate stores",
	}, []string{"dataset", "op"})
)

// RecordStoreOp observes one store operation started at start.
func RecordStoreOp(store, op string, start time.Time, err error) {
	storeDuration.WithLabelValues(store, op).Observe(time.Since(start).Seconds())
	if err != nil {
		storeErrors.WithLabelValues(store, op, fderror.Code(err)).Inc()
	}
}

func RecordRouted(dataset, store string) {
	routedRecords.WithLabelValues(dataset, store).Inc()
}

func RecordRejected(dataset string, err error) {
	rejectedRecords.WithLabelValues(dataset, fderror.Code(err)).Inc()
}

func RecordPartial(dataset, op string) {
	partialFederations.WithLabelValues(dataset, op).Inc()
}
