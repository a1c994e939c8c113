package collector

import "github.com/prometheus/client_golang/prometheus"

// MetricSet holds all Prometheus metric descriptors for the radiation exporter.
type MetricSet struct {
	// Reading metrics
	doseRate   *prometheus.Desc
	rawValue   *prometheus.Desc
	sampleTime *prometheus.Desc
	noData     *prometheus.Desc

	// Diagnostic attributes
	stamp   *prometheus.Desc
	divisor *prometheus.Desc

	// Refresh self-metrics
	refreshErrors   *prometheus.CounterVec
	refreshDuration prometheus.Histogram
}

// newMetricSet creates all metric descriptors.
func newMetricSet() *MetricSet {
	labels := []string{"station_code", "station_name"}

	return &MetricSet{
		doseRate: prometheus.NewDesc(
			"radiation_dose_rate_nanosieverts_per_hour",
			"Latest de-scaled gamma dose rate (nSv/h)",
			labels, nil,
		),
		rawValue: prometheus.NewDesc(
			"radiation_raw_value",
			"Latest raw value as returned by the API, before de-scaling",
			labels, nil,
		),
		sampleTime: prometheus.NewDesc(
			"radiation_sample_timestamp_unix",
			"Timestamp of the latest sample (unix seconds); absent if unparseable",
			labels, nil,
		),
		noData: prometheus.NewDesc(
			"radiation_no_data",
			"1 when the latest reading is the synthetic no-data placeholder",
			labels, nil,
		),

		stamp: prometheus.NewDesc(
			"radiation_stamp",
			"Per-installation stamp sent as a request header",
			labels, nil,
		),
		divisor: prometheus.NewDesc(
			"radiation_divisor",
			"De-scaling divisor derived from the stamp",
			labels, nil,
		),

		refreshErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radiation_refresh_errors_total",
			Help: "Total number of failed refreshes per station",
		}, []string{"station_code"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "radiation_refresh_duration_seconds",
			Help:    "Time spent refreshing station data, retries included",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
	}
}
