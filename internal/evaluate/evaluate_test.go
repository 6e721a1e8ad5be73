package evaluate

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-scorer/internal/dataset"
	"loan-scorer/internal/features"
	"loan-scorer/internal/loan"
	"loan-scorer/internal/ml"
)

const labeledCSV = `Loan_ID,Credit_History,ApplicantIncome,Loan_Status
A1,1,5000,Y
A2,0,3000,N
A3,1,4000,N
A4,0,6000,Y
A5,1,-1,Y
A6,1,5000,
`

// creditScorer approves applicants with a credit history and rejects
// negative incomes as invalid.
type creditScorer struct {
	seen []loan.Application
}

func (s *creditScorer) Predict(_ context.Context, app loan.Application) (loan.Decision, error) {
	s.seen = append(s.seen, app)
	if app["ApplicantIncome"] == "-1" {
		return loan.Decision{}, fmt.Errorf("%w: income is negative", ml.ErrInvalidInput)
	}
	if app["Credit_History"] == "1" {
		return loan.Decision{Label: loan.Approved, Confidence: 80, DTIRatio: 0.1, Advice: "ok"}, nil
	}
	return loan.Decision{Label: loan.Declined, Confidence: 70, DTIRatio: 0.5, Advice: "no"}, nil
}

func labeledData(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Read(strings.NewReader(labeledCSV), ',')
	require.NoError(t, err)
	return ds
}

func statusEncoder() *features.Encoder {
	return features.FitEncoder("Loan_Status", []string{"N", "Y"})
}

func TestRun(t *testing.T) {
	scorer := &creditScorer{}
	report, err := Run(context.Background(), scorer, labeledData(t), statusEncoder(), "sample")
	require.NoError(t, err)

	assert.Equal(t, "sample", report.Dataset)
	assert.Equal(t, 6, report.Rows)
	assert.Equal(t, 5, report.Scored)
	assert.Equal(t, 4, report.Labeled)
	assert.Equal(t, 3, report.Approved)
	assert.InDelta(t, 0.5, report.Accuracy, 1e-9)
	assert.InDelta(t, 0.6, report.ApprovalRate, 1e-9)
	assert.Equal(t, map[string]int{ml.KindInvalidInput: 1}, report.Failures)
	assert.Equal(t, Confusion{TruePositive: 1, FalsePositive: 1, TrueNegative: 1, FalseNegative: 1}, report.Confusion)
	assert.InDelta(t, 0.5, report.Confusion.Precision(), 1e-9)
	assert.InDelta(t, 0.5, report.Confusion.Recall(), 1e-9)
	assert.False(t, report.EndTime.Before(report.StartTime))

	require.Len(t, report.Outcomes, 6)
	assert.Equal(t, Outcome{Row: 0, LoanID: "A1", Actual: "APPROVED", Status: "APPROVED", Score: 80, DTI: 10, Advice: "ok", Correct: true}, report.Outcomes[0])
	assert.Equal(t, ml.KindInvalidInput, report.Outcomes[4].ErrorKind)
	assert.Empty(t, report.Outcomes[4].Status)
	assert.Empty(t, report.Outcomes[5].Actual)
	assert.Equal(t, "APPROVED", report.Outcomes[5].Status)

	for _, app := range scorer.seen {
		assert.NotContains(t, app, "Loan_Status")
		assert.NotContains(t, app, "Loan_ID")
	}
}

func TestRun_WithoutTarget(t *testing.T) {
	report, err := Run(context.Background(), &creditScorer{}, labeledData(t), nil, "unlabeled")
	require.NoError(t, err)

	assert.Equal(t, 5, report.Scored)
	assert.Zero(t, report.Labeled)
	assert.Zero(t, report.Accuracy)
	assert.Equal(t, Confusion{}, report.Confusion)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, &creditScorer{}, labeledData(t), statusEncoder(), "sample")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NilScorer(t *testing.T) {
	_, err := Run(context.Background(), nil, labeledData(t), statusEncoder(), "sample")
	assert.Error(t, err)
}

func TestReport_Record(t *testing.T) {
	report, err := Run(context.Background(), &creditScorer{}, labeledData(t), statusEncoder(), "sample")
	require.NoError(t, err)

	record := report.Record()
	assert.Equal(t, "sample", record.Dataset)
	assert.Equal(t, report.EndTime, record.Timestamp)
	assert.Equal(t, 6, record.Rows)
	assert.Equal(t, 5, record.Scored)
	assert.Equal(t, report.Accuracy, record.Accuracy)
	assert.Equal(t, report.Failures, record.Failures)

	record.Failures["other"] = 1
	assert.NotContains(t, report.Failures, "other")
}

func TestReporter_GenerateReport(t *testing.T) {
	report, err := Run(context.Background(), &creditScorer{}, labeledData(t), statusEncoder(), "sample")
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, NewReporter(report, dir).GenerateReport())

	summary, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Dataset: sample")
	assert.Contains(t, string(summary), "Accuracy: 50.00%")
	assert.Contains(t, string(summary), "Approval Rate: 60.00%")
	assert.Contains(t, string(summary), "invalid_input: 1")

	file, err := os.Open(filepath.Join(dir, DecisionsFile))
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)
	assert.Equal(t, "Loan_ID", records[0][1])
	assert.Equal(t, []string{"0", "A1", "APPROVED", "APPROVED", "80.00", "10.0", "true", "ok", "", ""}, records[1])

	data, err := os.ReadFile(filepath.Join(dir, JSONFile))
	require.NoError(t, err)
	var decoded struct {
		Report    Report  `json:"report"`
		Precision float64 `json:"precision"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 5, decoded.Report.Scored)
	assert.Len(t, decoded.Report.Outcomes, 6)
	assert.InDelta(t, 0.5, decoded.Precision, 1e-9)
}
