package ml

import (
	"context"
	"sync"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      map[string]int
	failures         map[string]int
	unseen           map[string]int
	latencySum       float64
	timeouts         int
	modelAge         float64
	predictionScores []float64
	dti              []float64
}

func (m *MockMetrics) MLPredictionsInc(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions == nil {
		m.predictions = make(map[string]int)
	}
	m.predictions[status]++
}

func (m *MockMetrics) MLFailuresInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[kind]++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLTimeoutsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

func (m *MockMetrics) UnseenCategoryInc(column string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unseen == nil {
		m.unseen = make(map[string]int)
	}
	m.unseen[column]++
}

func (m *MockMetrics) DTIObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dti = append(m.dti, v)
}

// MockClassifier returns fixed outputs and records the vectors it was given.
type MockClassifier struct {
	mu    sync.Mutex
	Label int
	Proba float64
	Err   error
	seen  [][]float64
}

func (c *MockClassifier) Predict(_ context.Context, x []float64) (int, error) {
	c.record(x)
	return c.Label, c.Err
}

func (c *MockClassifier) PredictProba(_ context.Context, x []float64) (float64, error) {
	c.record(x)
	return c.Proba, c.Err
}

func (c *MockClassifier) MarshalJSON() ([]byte, error) {
	return []byte(`{"kind":"mock"}`), nil
}

func (c *MockClassifier) record(x []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, append([]float64(nil), x...))
}

func (c *MockClassifier) lastVector() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seen) == 0 {
		return nil
	}
	return c.seen[len(c.seen)-1]
}
