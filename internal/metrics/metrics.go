package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for monitoring the submission pipeline.
var (
	SubmissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waste_submissions_total",
			Help: "Total number of submissions persisted",
		},
	)

	AnomaliesFlaggedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waste_anomalies_flagged_total",
			Help: "Total number of submissions flagged as anomalous",
		},
	)

	DetectionUnavailableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waste_detection_unavailable_total",
			Help: "Total number of detection calls that degraded to unavailable",
		},
	)

	AnomalyRecordFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waste_anomaly_record_failures_total",
			Help: "Total number of anomaly-record writes that failed",
		},
	)

	DetectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waste_detection_duration_seconds",
			Help:    "Duration of remote detection calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all pipeline metrics.
func Register() {
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(AnomaliesFlaggedTotal)
	prometheus.MustRegister(DetectionUnavailableTotal)
	prometheus.MustRegister(AnomalyRecordFailuresTotal)
	prometheus.MustRegister(DetectionDuration)
}
