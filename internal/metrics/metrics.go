// Package metrics provides Prometheus metrics collection for the loan scorer.
// It defines the scoring, failure and HTTP metrics exposed via the Prometheus
// metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the loan scorer.
type Metrics struct {
	// Scoring metrics
	Predictions        *prometheus.CounterVec // Decisions by status (APPROVED, DECLINED)
	Failures           *prometheus.CounterVec // Failed predictions by kind
	UnseenCategories   *prometheus.CounterVec // Categorical values that fell back to the default code
	Latency            prometheus.Histogram   // End-to-end prediction latency in seconds
	Confidence         prometheus.Histogram   // Distribution of decision confidence (0-100)
	DTIRatio           prometheus.Histogram   // Distribution of debt-to-income ratios
	ModelAge           prometheus.Gauge       // Age of the loaded artifacts in seconds
	ClassifierTimeouts prometheus.Counter     // Remote classifier timeouts

	// Serving metrics
	HTTPRequests *prometheus.CounterVec // Requests by route and status code
	WSSessions   prometheus.Gauge       // Open websocket scoring sessions
	Panics       prometheus.Counter     // Recovered handler panics
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_predictions_total",
			Help: "Total number of loan decisions by status",
		}, []string{"status"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_prediction_failures_total",
			Help: "Total number of failed predictions by kind",
		}, []string{"kind"}),
		UnseenCategories: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_unseen_categories_total",
			Help: "Categorical values not seen in training, encoded with the fallback code",
		}, []string{"column"}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		Confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_prediction_confidence",
			Help:    "Distribution of decision confidence percentages",
			Buckets: prometheus.LinearBuckets(50, 5, 11),
		}),
		DTIRatio: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_dti_ratio",
			Help:    "Distribution of estimated debt-to-income ratios",
			Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.75, 1, 2, 5},
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loan_model_age_seconds",
			Help: "Age of the loaded model artifacts in seconds",
		}),
		ClassifierTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_classifier_timeouts_total",
			Help: "Total number of remote classifier timeouts",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		WSSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loan_ws_sessions",
			Help: "Number of open websocket scoring sessions",
		}),
		Panics: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_http_panics_total",
			Help: "Total number of recovered handler panics",
		}),
	}
}
