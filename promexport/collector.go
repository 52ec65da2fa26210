// Package promexport exposes monitorz statistics to Prometheus.
//
// Collector reads registry snapshots at scrape time, so nothing is copied on
// the recording path. NewLatencyObserver adds a latency histogram fed by
// completion events for dashboards that need quantiles.
//
//	registry := monitorz.New()
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(promexport.NewCollector(registry, promexport.WithNamespace("shop")))
package promexport

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/monitorz"
)

// Option configures a Collector.
type Option func(*config)

type config struct {
	namespace   string
	constLabels prometheus.Labels
}

// WithNamespace prefixes every metric name. Default is "monitorz".
func WithNamespace(namespace string) Option {
	return func(c *config) {
		c.namespace = namespace
	}
}

// WithConstLabels attaches static labels to every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *config) {
		c.constLabels = labels
	}
}

// Collector is a prometheus.Collector over a monitorz.Registry.
type Collector struct {
	registry *monitorz.Registry

	entries         *prometheus.Desc
	exits           *prometheus.Desc
	failures        *prometheus.Desc
	durationTotal   *prometheus.Desc
	durationMax     *prometheus.Desc
	durationLast    *prometheus.Desc
	durationAverage *prometheus.Desc
	durationWeighed *prometheus.Desc
	operations      *prometheus.Desc
	eventsDropped   *prometheus.Desc
}

// NewCollector returns a collector for registry. Register it with a
// prometheus.Registerer to expose it.
func NewCollector(registry *monitorz.Registry, opts ...Option) *Collector {
	cfg := config{namespace: "monitorz"}
	for _, opt := range opts {
		opt(&cfg)
	}

	op := []string{"operation"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(cfg.namespace, "", name), help, labels, cfg.constLabels)
	}

	return &Collector{
		registry:        registry,
		entries:         desc("operation_entries_total", "Invocations started.", op),
		exits:           desc("operation_exits_total", "Invocations completed, successfully or not.", op),
		failures:        desc("operation_failures_total", "Invocations that ended in an error.", op),
		durationTotal:   desc("operation_duration_milliseconds_total", "Cumulative duration of completed invocations.", op),
		durationMax:     desc("operation_duration_max_milliseconds", "Longest completed invocation.", op),
		durationLast:    desc("operation_duration_last_milliseconds", "Most recent completed invocation.", op),
		durationAverage: desc("operation_duration_average_milliseconds", "Mean duration of completed invocations.", op),
		durationWeighed: desc("operation_duration_weighted_average_milliseconds", "Exponentially weighted moving average of durations.", op),
		operations:      desc("registry_operations", "Distinct operations registered.", nil),
		eventsDropped:   desc("observer_events_dropped_total", "Completion events dropped because the observer queue was full.", nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.exits
	ch <- c.failures
	ch <- c.durationTotal
	ch <- c.durationMax
	ch <- c.durationLast
	ch <- c.durationAverage
	ch <- c.durationWeighed
	ch <- c.operations
	ch <- c.eventsDropped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.registry.Snapshots() {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.CounterValue, float64(s.Entries), s.Name)
		ch <- prometheus.MustNewConstMetric(c.exits, prometheus.CounterValue, float64(s.Exits), s.Name)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(s.Failures), s.Name)
		ch <- prometheus.MustNewConstMetric(c.durationTotal, prometheus.CounterValue, s.TotalDuration, s.Name)
		ch <- prometheus.MustNewConstMetric(c.durationMax, prometheus.GaugeValue, s.MaxDuration, s.Name)
		ch <- prometheus.MustNewConstMetric(c.durationLast, prometheus.GaugeValue, s.LastDuration, s.Name)
		ch <- prometheus.MustNewConstMetric(c.durationWeighed, prometheus.GaugeValue, s.WeightedAverage, s.Name)
		// no average until the first completion
		if !math.IsNaN(s.AverageDuration) {
			ch <- prometheus.MustNewConstMetric(c.durationAverage, prometheus.GaugeValue, s.AverageDuration, s.Name)
		}
	}

	m := c.registry.Metrics()
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.GaugeValue, float64(m.Operations))
	ch <- prometheus.MustNewConstMetric(c.eventsDropped, prometheus.CounterValue, float64(m.EventsDropped))
}
