package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
	Inc()
	Dec()
}

// MetricsWrapper adapts Metrics to the interface the scoring engine and the
// HTTP server consume.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc(status string) {
	w.m.Predictions.WithLabelValues(status).Inc()
}

func (w *MetricsWrapper) MLFailuresInc(kind string) {
	w.m.Failures.WithLabelValues(kind).Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.Latency.Observe(v)
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) {
	w.m.ModelAge.Set(v)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(v float64) {
	w.m.Confidence.Observe(v)
}

func (w *MetricsWrapper) MLTimeoutsInc() {
	w.m.ClassifierTimeouts.Inc()
}

func (w *MetricsWrapper) UnseenCategoryInc(column string) {
	w.m.UnseenCategories.WithLabelValues(column).Inc()
}

func (w *MetricsWrapper) DTIObserve(v float64) {
	w.m.DTIRatio.Observe(v)
}

// HTTPRequestsInc counts a served request.
func (w *MetricsWrapper) HTTPRequestsInc(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (w *MetricsWrapper) PanicsTotal() MetricsCounter {
	return &CounterWrapper{w.m.Panics}
}

func (w *MetricsWrapper) WSSessions() MetricsGauge {
	return &GaugeWrapper{w.m.WSSessions}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

func (gw *GaugeWrapper) Inc() {
	gw.g.Inc()
}

func (gw *GaugeWrapper) Dec() {
	gw.g.Dec()
}
