package clone

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsCloned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventclone_records_cloned_total",
		Help: "Owned records copied into a target context",
	}, []string{"kind"})

	recordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventclone_records_skipped_total",
		Help: "Owned records left out of a clone with a warning",
	}, []string{"kind"})

	associations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventclone_associations_total",
		Help: "Shared entity links by outcome",
	}, []string{"kind", "result"})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventclone_step_duration_seconds",
		Help:    "Clone step execution time including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "operation", "status"})

	stepRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventclone_step_retries_total",
		Help: "Step attempts repeated after a transient store error",
	}, []string{"kind", "operation"})
)
