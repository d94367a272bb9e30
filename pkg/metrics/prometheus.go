package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	rowsAligned   prometheus.Counter
	rowsDropped   *prometheus.CounterVec
	trainDuration *prometheus.HistogramVec
	calibration   *prometheus.GaugeVec
	predictions   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		rowsAligned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gridspend_rows_aligned_total",
				Help: "Total number of hourly spine rows produced by alignment",
			},
		),
		rowsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridspend_rows_dropped_total",
				Help: "Total number of rows dropped during feature derivation",
			},
			[]string{"granularity", "reason"},
		),
		trainDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridspend_train_duration_seconds",
				Help:    "Duration of model training in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"granularity"},
		),
		calibration: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gridspend_calibration_factor",
				Help: "Calibration factor of the most recently trained model",
			},
			[]string{"granularity"},
		),
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridspend_predictions_total",
				Help: "Total number of prediction rows published",
			},
			[]string{"granularity"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridspend_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridspend_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRowsAligned records hourly spine rows produced by alignment.
func (r *Recorder) RecordRowsAligned(n int) {
	r.rowsAligned.Add(float64(n))
}

// RecordRowsDropped records rows dropped for a reason at a granularity.
func (r *Recorder) RecordRowsDropped(g string, reason string, n int) {
	if n <= 0 {
		return
	}
	r.rowsDropped.WithLabelValues(g, reason).Add(float64(n))
}

// RecordTrainDuration records training duration for a granularity.
func (r *Recorder) RecordTrainDuration(g string, seconds float64) {
	r.trainDuration.WithLabelValues(g).Observe(seconds)
}

// RecordCalibration records the latest calibration factor for a granularity.
func (r *Recorder) RecordCalibration(g string, factor float64) {
	r.calibration.WithLabelValues(g).Set(factor)
}

// RecordPredictions records published prediction rows for a granularity.
func (r *Recorder) RecordPredictions(g string, n int) {
	r.predictions.WithLabelValues(g).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
