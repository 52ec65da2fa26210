package promexport

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/monitorz"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// NewLatencyHistogram builds the default histogram used by
// NewLatencyObserver, labelled by operation and outcome, in seconds.
func NewLatencyHistogram(namespace string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of completed invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16), // 0.5ms .. ~16s
		},
		[]string{"operation", "outcome"},
	)
}

// NewLatencyObserver records every completion of registry into vec.
// vec must have exactly the labels "operation" and "outcome".
func NewLatencyObserver(registry *monitorz.Registry, vec *prometheus.HistogramVec) (monitorz.Hook, error) {
	return registry.Observe(func(_ context.Context, c monitorz.Completion) error {
		outcome := outcomeSuccess
		if c.Failed {
			outcome = outcomeFailure
		}
		vec.WithLabelValues(c.Name, outcome).Observe(c.Elapsed / 1000)
		return nil
	})
}
