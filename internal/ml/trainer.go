package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"loan-scorer/internal/common"
	"loan-scorer/internal/dataset"
	"loan-scorer/internal/features"
)

// TrainOptions configures Train.
type TrainOptions struct {
	Logistic LogisticConfig

	// Classifier replaces the built-in logistic model when set.
	Classifier Trainer
}

// TrainReport summarises a training run.
type TrainReport struct {
	Rows         int
	UsedRows     int
	FailedRows   []features.RowError
	Unlabeled    int
	FeatureOrder []string
	Accuracy     float64

	// ClassCounts is the number of used rows per target label.
	ClassCounts map[string]int
}

// Train fits the transformer, encoders and classifier on a labeled table.
func Train(ds *dataset.Dataset, opts TrainOptions) (*Artifacts, TrainReport, error) {
	report := TrainReport{Rows: len(ds.Records)}

	if !ds.HasColumn(common.FieldLoanStatus) {
		return nil, report, fmt.Errorf("%w: training table has no %s column", ErrSchemaMismatch, common.FieldLoanStatus)
	}

	state, cleaned, failed := features.FitAndClean(ds.Rows())
	report.FailedRows = failed
	for _, f := range failed {
		log.Warn().Err(f.Err).Int("row", f.Index).Msg("Dropping training row")
	}

	labeled := make([]features.Row, 0, len(cleaned))
	targets := make([]string, 0, len(cleaned))
	for _, r := range cleaned {
		t := r.Categorical[common.FieldLoanStatus]
		if t == features.MissingCategory {
			report.Unlabeled++
			continue
		}
		labeled = append(labeled, r)
		targets = append(targets, t)
	}
	if len(labeled) == 0 {
		return nil, report, errors.New("no labeled rows to train on")
	}

	target := features.FitEncoder(common.FieldLoanStatus, targets)
	if n := len(target.Classes()); n != 2 {
		return nil, report, fmt.Errorf("target %s has %d classes, expected 2", common.FieldLoanStatus, n)
	}

	encoders := features.FitEncoderTable(common.CategoricalColumns, labeled, common.UnseenCategoryCode)
	order := FeatureOrder(ds.Columns, encoders)

	X := make([][]float64, len(labeled))
	y := make([]int, len(labeled))
	for i, r := range labeled {
		for _, c := range encoders.Columns() {
			if _, ok := r.Categorical[c]; !ok {
				r.Categorical[c] = features.MissingCategory
			}
		}
		x, err := assemble(r, order, encoders, nil)
		if err != nil {
			return nil, report, fmt.Errorf("row %d: %w", i, err)
		}
		X[i] = x
		y[i], _ = target.Encode(targets[i])
	}

	clf := opts.Classifier
	kind := fmt.Sprintf("%T", clf)
	if clf == nil {
		clf = NewLogisticModel(opts.Logistic)
		kind = kindLogistic
	}

	start := time.Now()
	if err := clf.Fit(X, y); err != nil {
		return nil, report, fmt.Errorf("failed to fit classifier: %w", err)
	}

	accuracy, err := trainingAccuracy(clf, X, y)
	if err != nil {
		return nil, report, err
	}

	report.UsedRows = len(labeled)
	report.FeatureOrder = order
	report.Accuracy = accuracy
	report.ClassCounts = make(map[string]int, 2)
	for _, code := range y {
		label, _ := target.Decode(code)
		report.ClassCounts[label]++
	}

	log.Info().
		Int("rows", report.Rows).
		Int("used", report.UsedRows).
		Int("failed", len(report.FailedRows)).
		Int("unlabeled", report.Unlabeled).
		Strs("features", order).
		Float64("accuracy", accuracy).
		Interface("classes", report.ClassCounts).
		Dur("fit_time", time.Since(start)).
		Msg("Training complete")

	a := &Artifacts{
		State:         state,
		Encoders:      encoders,
		FeatureOrder:  order,
		Classifier:    clf,
		TargetEncoder: target,
		Metadata: Metadata{
			TrainedAt:        time.Now().UTC(),
			TrainingRows:     report.UsedRows,
			DroppedRows:      len(report.FailedRows) + report.Unlabeled,
			TrainingAccuracy: accuracy,
			ClassifierKind:   kind,
		},
	}
	return a, report, nil
}

// FeatureOrder returns the trained column order for a table header: the
// cleaned columns without the target, keeping numeric and derived columns
// and categorical columns that have an encoder.
func FeatureOrder(header []string, encoders *features.EncoderTable) []string {
	numeric := map[string]bool{
		common.FeatureTotalIncome:    true,
		common.FeatureEMI:            true,
		common.FeatureTotalIncomeLog: true,
	}

	var order []string
	for _, c := range features.OutputColumns(header) {
		switch {
		case c == common.FieldLoanStatus:
		case common.IsNumeric(c), numeric[c], encoders.Has(c):
			order = append(order, c)
		default:
			log.Debug().Str("column", c).Msg("Column not used as a feature")
		}
	}
	return order
}

func trainingAccuracy(c Classifier, X [][]float64, y []int) (float64, error) {
	var correct int
	for i, x := range X {
		label, err := c.Predict(context.Background(), x)
		if err != nil {
			return 0, fmt.Errorf("failed to score training row %d: %w", i, err)
		}
		if label == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X)), nil
}
