package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes pipeline metrics on its own registry
type Recorder struct {
	registry         *prometheus.Registry
	providerAttempts *prometheus.CounterVec
	ingestions       *prometheus.CounterVec
	trainingRuns     *prometheus.CounterVec
	predictionRuns   *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	failureStreak    *prometheus.GaugeVec
	ingestionAlerts  *prometheus.CounterVec
	queueDepth       prometheus.Gauge
}

// New creates a Recorder with a fresh registry, including Go runtime collectors
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		providerAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintel_provider_attempts_total",
				Help: "Provider fetch attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		ingestions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintel_ingestions_total",
				Help: "Ingestion cycles by outcome",
			},
			[]string{"outcome"},
		),
		trainingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintel_training_runs_total",
				Help: "Training runs by outcome",
			},
			[]string{"outcome"},
		),
		predictionRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintel_prediction_runs_total",
				Help: "Prediction runs by outcome",
			},
			[]string{"outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintel_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		failureStreak: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fintel_ingestion_failure_streak",
				Help: "Consecutive ingestion cycles in which every provider failed",
			},
			[]string{"symbol"},
		),
		ingestionAlerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintel_ingestion_alerts_total",
				Help: "Alerts raised for assets whose failure streak reached the threshold",
			},
			[]string{"symbol"},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fintel_pipeline_queue_depth",
				Help: "Assets waiting in the pipeline queue",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordProviderAttempt records one provider call
func (r *Recorder) RecordProviderAttempt(source, outcome string) {
	r.providerAttempts.WithLabelValues(source, outcome).Inc()
}

// RecordIngestion records the outcome of one asset ingestion cycle
func (r *Recorder) RecordIngestion(outcome string, elapsed time.Duration) {
	r.ingestions.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues("ingestion").Observe(elapsed.Seconds())
}

// RecordTraining records the outcome of one training request
func (r *Recorder) RecordTraining(outcome string, elapsed time.Duration) {
	r.trainingRuns.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues("training").Observe(elapsed.Seconds())
}

// RecordPrediction records the outcome of one prediction run
func (r *Recorder) RecordPrediction(outcome string) {
	r.predictionRuns.WithLabelValues(outcome).Inc()
}

// SetFailureStreak publishes an asset's current failure streak. Zero removes the series.
func (r *Recorder) SetFailureStreak(symbol string, streak int) {
	if streak == 0 {
		r.failureStreak.DeleteLabelValues(symbol)
		return
	}
	r.failureStreak.WithLabelValues(symbol).Set(float64(streak))
}

// RecordAlert counts an operational alert for an asset
func (r *Recorder) RecordAlert(symbol string) {
	r.ingestionAlerts.WithLabelValues(symbol).Inc()
}

// SetQueueDepth publishes the pipeline backlog
func (r *Recorder) SetQueueDepth(n int) {
	r.queueDepth.Set(float64(n))
}
