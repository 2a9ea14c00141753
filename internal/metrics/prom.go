// Package metrics holds the Prometheus collectors shared by the binaries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Task outcomes recorded by TaskEnd.
const (
	OutcomePublished         = "published"
	OutcomeDecodeError       = "decode_error"
	OutcomeRecognitionFailed = "recognition_failed"
	OutcomeProviderError     = "provider_error"
	OutcomePublishError      = "publish_error"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "speechai_build_info",
			Help: "Build information for the running binary",
		},
		[]string{"component", "version"},
	)

	tasksInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "speechai_worker_tasks_inflight",
			Help: "Number of audio tasks currently being assessed",
		},
	)

	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechai_worker_tasks_total",
			Help: "Audio tasks handled by the worker, by outcome",
		},
		[]string{"outcome"},
	)

	recognitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speechai_recognition_duration_seconds",
			Help:    "Latency of recognition provider calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"provider", "result"},
	)

	publishedScores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speechai_published_score",
			Help:    "Distribution of published scores in [0,1]",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"dimension"},
	)

	tasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speechai_api_tasks_submitted_total",
			Help: "Audio tasks published by the exercise API, by source",
		},
		[]string{"source"},
	)

	resultsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "speechai_listener_results_total",
			Help: "Assessment results consumed by the result listener",
		},
	)
)

// Register adds every collector to r.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, tasksInflight, tasksTotal, recognitionDuration,
		publishedScores, tasksSubmitted, resultsReceived)
}

// SetBuildInfo marks the running component and version.
func SetBuildInfo(component, version string) {
	buildInfo.WithLabelValues(component, version).Set(1)
}

// TaskStart increments the in-flight gauge.
func TaskStart() { tasksInflight.Inc() }

// TaskEnd decrements the in-flight gauge and counts the outcome.
func TaskEnd(outcome string) {
	tasksInflight.Dec()
	tasksTotal.WithLabelValues(outcome).Inc()
}

// ObserveRecognition records one provider call.
func ObserveRecognition(provider string, ok bool, d time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	recognitionDuration.WithLabelValues(provider, result).Observe(d.Seconds())
}

// ObserveScores records the published scores of one result.
func ObserveScores(accuracy, fluency, completeness, overall float64) {
	publishedScores.WithLabelValues("accuracy").Observe(accuracy)
	publishedScores.WithLabelValues("fluency").Observe(fluency)
	publishedScores.WithLabelValues("completeness").Observe(completeness)
	publishedScores.WithLabelValues("overall").Observe(overall)
}

// TaskSubmitted counts a task published by the exercise API.
func TaskSubmitted(source string) { tasksSubmitted.WithLabelValues(source).Inc() }

// ResultReceived counts a result consumed by the listener.
func ResultReceived() { resultsReceived.Inc() }
