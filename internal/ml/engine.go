package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"loan-scorer/internal/advisor"
	"loan-scorer/internal/features"
	"loan-scorer/internal/loan"
)

// MetricsInterface defines metrics methods needed by the engine
type MetricsInterface interface {
	MLPredictionsInc(status string)
	MLFailuresInc(kind string)
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLPredictionScoresObserve(float64)
	MLTimeoutsInc()
	UnseenCategoryInc(column string)
	DTIObserve(float64)
}

// Engine scores applications against a loaded artifact set. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	artifacts *Artifacts
	metrics   MetricsInterface
}

// NewEngine validates a and returns an engine over it. metrics may be nil.
func NewEngine(a *Artifacts, metrics MetricsInterface) (*Engine, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid artifacts: %w", err)
	}

	if metrics != nil && !a.Metadata.TrainedAt.IsZero() {
		metrics.MLModelAgeSet(time.Since(a.Metadata.TrainedAt).Seconds())
	}

	return &Engine{artifacts: a, metrics: metrics}, nil
}

// Artifacts returns the artifact set the engine scores with.
func (e *Engine) Artifacts() *Artifacts { return e.artifacts }

// Predict scores app and explains the outcome. Failures wrap ErrSchemaMismatch,
// ErrInvalidInput or ErrClassifier; none are retried.
func (e *Engine) Predict(ctx context.Context, app loan.Application) (loan.Decision, error) {
	start := time.Now()
	d, err := e.predict(ctx, app)

	if e.metrics != nil {
		e.metrics.MLLatencyObserve(time.Since(start).Seconds())
		if err != nil {
			e.metrics.MLFailuresInc(Kind(err))
		} else {
			e.metrics.MLPredictionsInc(d.Label.String())
			e.metrics.MLPredictionScoresObserve(d.Confidence)
			e.metrics.DTIObserve(d.DTIRatio)
		}
	}

	if err != nil {
		return loan.Decision{}, err
	}
	return d, nil
}

func (e *Engine) predict(ctx context.Context, app loan.Application) (loan.Decision, error) {
	x, err := e.Vector(app)
	if err != nil {
		return loan.Decision{}, err
	}

	label, proba, err := score(ctx, e.artifacts.Classifier, x)
	if err != nil {
		return loan.Decision{}, fmt.Errorf("%w: %w", ErrClassifier, err)
	}
	if label != 0 && label != 1 {
		return loan.Decision{}, fmt.Errorf("%w: label %d is not binary", ErrClassifier, label)
	}
	if !validProbability(proba) {
		return loan.Decision{}, fmt.Errorf("%w: invalid probability %f", ErrClassifier, proba)
	}

	d := loan.Decision{
		Label:    loan.LabelFromClass(label),
		DTIRatio: advisor.DebtToIncome(app),
	}
	if d.Label == loan.Approved {
		d.Confidence = loan.Round(proba*100, 2)
	} else {
		d.Confidence = loan.Round((1-proba)*100, 2)
	}
	d.Advice = advisor.Advise(app, d)

	return d, nil
}

// Vector returns the feature vector for app in trained column order.
func (e *Engine) Vector(app loan.Application) ([]float64, error) {
	row, err := features.TransformRow(e.artifacts.State, features.FromApplication(app))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return assemble(row, e.artifacts.FeatureOrder, e.artifacts.Encoders, func(column, value string) {
		if e.metrics != nil {
			e.metrics.UnseenCategoryInc(column)
		}
		log.Warn().
			Str("column", column).
			Str("value", value).
			Int("code", e.artifacts.Encoders.Fallback()).
			Msg("Unseen category, using fallback code")
	})
}

// assemble orders a cleaned row into a vector. Columns with an encoder are
// label encoded; unseen values take the fallback code and are reported to
// unseen. A trained column missing from the row is a schema mismatch.
func assemble(row features.Row, order []string, enc *features.EncoderTable, unseen func(column, value string)) ([]float64, error) {
	x := make([]float64, len(order))
	for i, column := range order {
		if enc.Has(column) {
			value, ok := row.Categorical[column]
			if !ok {
				return nil, fmt.Errorf("%w: trained feature %q is missing", ErrSchemaMismatch, column)
			}
			code, known := enc.Encode(column, value)
			if !known && unseen != nil {
				unseen(column, value)
			}
			x[i] = float64(code)
			continue
		}

		if v, ok := row.Numeric[column]; ok {
			x[i] = v
			continue
		}
		if _, ok := row.Categorical[column]; ok {
			return nil, fmt.Errorf("%w: feature %q has no encoder", ErrSchemaMismatch, column)
		}
		return nil, fmt.Errorf("%w: trained feature %q is missing", ErrSchemaMismatch, column)
	}
	return x, nil
}
