// Package evaluate scores a labeled table through the serving path and
// summarises how the decisions compare with the recorded outcomes.
package evaluate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"loan-scorer/internal/common"
	"loan-scorer/internal/dataset"
	"loan-scorer/internal/features"
	"loan-scorer/internal/loan"
	"loan-scorer/internal/ml"
	"loan-scorer/internal/storage"
)

// Scorer is the part of the engine an evaluation needs.
type Scorer interface {
	Predict(ctx context.Context, app loan.Application) (loan.Decision, error)
}

// Outcome is the result of scoring one record.
type Outcome struct {
	Row       int     `json:"row"`
	LoanID    string  `json:"loan_id,omitempty"`
	Actual    string  `json:"actual,omitempty"`
	Status    string  `json:"status,omitempty"`
	Score     float64 `json:"score,omitempty"`
	DTI       float64 `json:"dti,omitempty"`
	Advice    string  `json:"advice,omitempty"`
	Correct   bool    `json:"correct"`
	Error     string  `json:"error,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty"`
}

// Confusion counts decisions against recorded outcomes, with approval as the
// positive class.
type Confusion struct {
	TruePositive  int `json:"true_positive"`
	FalsePositive int `json:"false_positive"`
	TrueNegative  int `json:"true_negative"`
	FalseNegative int `json:"false_negative"`
}

// Precision of approvals; 0 when nothing was approved.
func (c Confusion) Precision() float64 {
	if n := c.TruePositive + c.FalsePositive; n > 0 {
		return float64(c.TruePositive) / float64(n)
	}
	return 0
}

// Recall of approvals; 0 when no record was approved.
func (c Confusion) Recall() float64 {
	if n := c.TruePositive + c.FalseNegative; n > 0 {
		return float64(c.TruePositive) / float64(n)
	}
	return 0
}

// Report holds the results of an evaluation run.
type Report struct {
	Dataset      string         `json:"dataset"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Rows         int            `json:"rows"`
	Scored       int            `json:"scored"`
	Labeled      int            `json:"labeled"`
	Approved     int            `json:"approved"`
	Accuracy     float64        `json:"accuracy"`
	ApprovalRate float64        `json:"approval_rate"`
	Confusion    Confusion      `json:"confusion"`
	Failures     map[string]int `json:"failures"`
	Outcomes     []Outcome      `json:"outcomes"`
}

// Record converts the report into its stored form.
func (r *Report) Record() storage.EvaluationRecord {
	failures := make(map[string]int, len(r.Failures))
	for k, v := range r.Failures {
		failures[k] = v
	}
	return storage.EvaluationRecord{
		Dataset:      r.Dataset,
		Timestamp:    r.EndTime,
		Rows:         r.Rows,
		Scored:       r.Scored,
		Accuracy:     r.Accuracy,
		ApprovalRate: r.ApprovalRate,
		Failures:     failures,
	}
}

// Run scores every record of ds with scorer. target maps recorded Loan_Status
// values to classes; records whose status is missing or unknown to target are
// scored but left out of accuracy. Scoring failures are counted by kind and do
// not stop the run; only context cancellation does.
func Run(ctx context.Context, scorer Scorer, ds *dataset.Dataset, target *features.Encoder, name string) (*Report, error) {
	if scorer == nil {
		return nil, errors.New("scorer is nil")
	}

	report := &Report{
		Dataset:   name,
		StartTime: time.Now().UTC(),
		Rows:      len(ds.Records),
		Failures:  make(map[string]int),
		Outcomes:  make([]Outcome, 0, len(ds.Records)),
	}

	correct := 0
	for i, record := range ds.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out := Outcome{Row: i, LoanID: record[common.FieldLoanID]}
		actual, known := recordedClass(record, target)
		if known {
			out.Actual = loan.LabelFromClass(actual).String()
		}

		d, err := scorer.Predict(ctx, application(record))
		if err != nil {
			kind := ml.Kind(err)
			report.Failures[kind]++
			out.Error = err.Error()
			out.ErrorKind = kind
			report.Outcomes = append(report.Outcomes, out)
			continue
		}

		resp := d.Response()
		out.Status = resp.Status
		out.Score = resp.Score
		out.DTI = resp.DTI
		out.Advice = resp.Advice
		report.Scored++
		if d.Label == loan.Approved {
			report.Approved++
		}

		if known {
			report.Labeled++
			predicted := int(d.Label)
			out.Correct = predicted == actual
			if out.Correct {
				correct++
			}
			report.Confusion.add(predicted, actual)
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	if report.Labeled > 0 {
		report.Accuracy = float64(correct) / float64(report.Labeled)
	}
	if report.Scored > 0 {
		report.ApprovalRate = float64(report.Approved) / float64(report.Scored)
	}
	report.EndTime = time.Now().UTC()

	log.Info().
		Str("dataset", name).
		Int("rows", report.Rows).
		Int("scored", report.Scored).
		Int("labeled", report.Labeled).
		Float64("accuracy", report.Accuracy).
		Float64("approval_rate", report.ApprovalRate).
		Interface("failures", report.Failures).
		Msg("Evaluation complete")

	return report, nil
}

func (c *Confusion) add(predicted, actual int) {
	switch {
	case predicted == 1 && actual == 1:
		c.TruePositive++
	case predicted == 1:
		c.FalsePositive++
	case actual == 0:
		c.TrueNegative++
	default:
		c.FalseNegative++
	}
}

func recordedClass(record map[string]string, target *features.Encoder) (int, bool) {
	if target == nil {
		return 0, false
	}
	status, ok := record[common.FieldLoanStatus]
	if !ok || loan.IsMissing(status) {
		return 0, false
	}
	return target.Encode(strings.TrimSpace(status))
}

// application strips the label and identifier columns from a record.
func application(record map[string]string) loan.Application {
	app := make(loan.Application, len(record))
	for k, v := range record {
		if k == common.FieldLoanStatus || k == common.FieldLoanID {
			continue
		}
		app[k] = v
	}
	return app
}
