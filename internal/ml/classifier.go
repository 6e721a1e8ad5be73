// Package ml holds the inference side of the loan scorer: the classifier
// contract and its implementations, the persisted artifact bundle, training and
// the Engine that turns an application into a decision.
//
// The classifier is opaque to the rest of the pipeline. The built-in logistic
// model is trained by Train; a RemoteClassifier forwards vectors to an
// externally trained model over HTTP.
package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// Classifier is a fitted binary classifier over ordered feature vectors.
type Classifier interface {
	// Predict returns the class label, 0 or 1.
	Predict(ctx context.Context, x []float64) (int, error)

	// PredictProba returns the probability of class 1.
	PredictProba(ctx context.Context, x []float64) (float64, error)
}

// Trainer is a Classifier that can be fitted.
type Trainer interface {
	Classifier
	Fit(X [][]float64, y []int) error
}

// Scorer is implemented by classifiers that produce label and probability in
// one call. The engine prefers it to avoid evaluating the model twice.
type Scorer interface {
	Score(ctx context.Context, x []float64) (label int, proba float64, err error)
}

// score evaluates c once through Scorer when available.
func score(ctx context.Context, c Classifier, x []float64) (int, float64, error) {
	if s, ok := c.(Scorer); ok {
		return s.Score(ctx, x)
	}
	label, err := c.Predict(ctx, x)
	if err != nil {
		return 0, 0, err
	}
	proba, err := c.PredictProba(ctx, x)
	if err != nil {
		return 0, 0, err
	}
	return label, proba, nil
}

type classifierKind struct {
	Kind string `json:"kind"`
}

// DecodeClassifier restores a persisted built-in classifier.
func DecodeClassifier(data []byte) (Classifier, error) {
	var k classifierKind
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("failed to read classifier kind: %w", err)
	}

	switch k.Kind {
	case kindLogistic:
		m := &LogisticModel{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("failed to decode logistic model: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", k.Kind)
	}
}

// validateFeatures rejects vectors the classifier cannot score.
func validateFeatures(x []float64, want int) error {
	if want > 0 && len(x) != want {
		return fmt.Errorf("expected %d features, got %d", want, len(x))
	}
	for i, f := range x {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("feature %d is not finite", i)
		}
		if f > 1e10 || f < -1e10 {
			return fmt.Errorf("feature %d has extreme value: %f", i, f)
		}
	}
	return nil
}

// validProbability reports whether p is a probability.
func validProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}
