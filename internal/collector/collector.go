// Package collector implements the Prometheus collector interface over the
// station coordinators.
package collector

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"radiation_exporter/internal/coordinator"
)

// RadiationCollector implements prometheus.Collector for the configured
// stations. It exposes whatever each coordinator last fetched; it never
// triggers a fetch itself.
type RadiationCollector struct {
	coordinators []*coordinator.Coordinator
	logger       *slog.Logger
	metrics      *MetricSet
}

// NewRadiationCollector creates a collector over the coordinator set.
func NewRadiationCollector(coordinators []*coordinator.Coordinator, logger *slog.Logger) *RadiationCollector {
	return &RadiationCollector{
		coordinators: coordinators,
		logger:       logger,
		metrics:      newMetricSet(),
	}
}

// Describe implements prometheus.Collector.
func (c *RadiationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.metrics.doseRate
	ch <- c.metrics.rawValue
	ch <- c.metrics.sampleTime
	ch <- c.metrics.noData
	ch <- c.metrics.stamp
	ch <- c.metrics.divisor

	c.metrics.refreshErrors.Describe(ch)
	c.metrics.refreshDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *RadiationCollector) Collect(ch chan<- prometheus.Metric) {
	for _, coord := range c.coordinators {
		reading := coord.Latest()
		if reading == nil {
			continue
		}

		station := coord.Station()
		labels := []string{station.Code, station.Name}

		ch <- prometheus.MustNewConstMetric(c.metrics.doseRate, prometheus.GaugeValue, reading.Value, labels...)
		ch <- prometheus.MustNewConstMetric(c.metrics.rawValue, prometheus.GaugeValue, reading.RawValue, labels...)
		ch <- prometheus.MustNewConstMetric(c.metrics.stamp, prometheus.GaugeValue, float64(reading.Stamp), labels...)
		ch <- prometheus.MustNewConstMetric(c.metrics.divisor, prometheus.GaugeValue, float64(reading.Divisor), labels...)

		noData := 0.0
		if reading.Status != "" {
			noData = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.metrics.noData, prometheus.GaugeValue, noData, labels...)

		if unix := parseTimeToUnix(reading.Timestamp); unix > 0 {
			ch <- prometheus.MustNewConstMetric(c.metrics.sampleTime, prometheus.GaugeValue, float64(unix), labels...)
		}
	}

	c.metrics.refreshErrors.Collect(ch)
	c.metrics.refreshDuration.Collect(ch)
}

// ObserveRefresh records a refresh outcome. The scheduler calls this after
// every attempt, manual or timed.
func (c *RadiationCollector) ObserveRefresh(code string, duration time.Duration, err error) {
	c.metrics.refreshDuration.Observe(duration.Seconds())
	if err != nil {
		c.metrics.refreshErrors.WithLabelValues(code).Inc()
	}
}

// timestampFormats are tried in order when parsing the API's date strings.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimeToUnix converts an API date string to unix seconds, or 0 if it
// cannot be parsed.
func parseTimeToUnix(s string) int64 {
	if s == "" {
		return 0
	}
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix()
		}
	}
	return 0
}
