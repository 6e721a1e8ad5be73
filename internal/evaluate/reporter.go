package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Report file names written by Reporter.
const (
	SummaryFile   = "evaluation_summary.txt"
	DecisionsFile = "decisions.csv"
	JSONFile      = "evaluation.json"
)

// Reporter generates evaluation reports
type Reporter struct {
	report     *Report
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(report *Report, outputPath string) *Reporter {
	return &Reporter{
		report:     report,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generateDecisionLog(); err != nil {
		return err
	}

	return r.generateJSONReport()
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	rep := r.report
	fmt.Fprintf(file, "EVALUATION SUMMARY\n")
	fmt.Fprintf(file, "==================\n\n")

	fmt.Fprintf(file, "Dataset: %s\n", rep.Dataset)
	fmt.Fprintf(file, "Run: %s to %s\n",
		rep.StartTime.Format("2006-01-02 15:04:05"),
		rep.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Duration: %s\n\n", rep.EndTime.Sub(rep.StartTime))

	fmt.Fprintf(file, "DECISIONS\n")
	fmt.Fprintf(file, "---------\n")
	fmt.Fprintf(file, "Rows: %d\n", rep.Rows)
	fmt.Fprintf(file, "Scored: %d\n", rep.Scored)
	fmt.Fprintf(file, "Approved: %d\n", rep.Approved)
	fmt.Fprintf(file, "Approval Rate: %.2f%%\n\n", rep.ApprovalRate*100)

	fmt.Fprintf(file, "QUALITY\n")
	fmt.Fprintf(file, "-------\n")
	fmt.Fprintf(file, "Labeled: %d\n", rep.Labeled)
	fmt.Fprintf(file, "Accuracy: %.2f%%\n", rep.Accuracy*100)
	fmt.Fprintf(file, "Precision: %.2f%%\n", rep.Confusion.Precision()*100)
	fmt.Fprintf(file, "Recall: %.2f%%\n", rep.Confusion.Recall()*100)
	fmt.Fprintf(file, "Confusion: TP=%d FP=%d TN=%d FN=%d\n",
		rep.Confusion.TruePositive, rep.Confusion.FalsePositive,
		rep.Confusion.TrueNegative, rep.Confusion.FalseNegative)

	if len(rep.Failures) > 0 {
		kinds := make([]string, 0, len(rep.Failures))
		for k := range rep.Failures {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		fmt.Fprintf(file, "\nFAILURES BY KIND\n")
		fmt.Fprintf(file, "----------------\n")
		for _, k := range kinds {
			fmt.Fprintf(file, "%s: %d\n", k, rep.Failures[k])
		}
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generateDecisionLog generates a CSV log of every scored record
func (r *Reporter) generateDecisionLog() error {
	csvPath := filepath.Join(r.outputPath, DecisionsFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create decision log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Row", "Loan_ID", "Actual", "Status", "Score", "DTI", "Correct", "Advice", "Error Kind", "Error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, o := range r.report.Outcomes {
		record := []string{
			strconv.Itoa(o.Row),
			o.LoanID,
			o.Actual,
			o.Status,
			fmt.Sprintf("%.2f", o.Score),
			fmt.Sprintf("%.1f", o.DTI),
			strconv.FormatBool(o.Correct),
			o.Advice,
			o.ErrorKind,
			o.Error,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write decision log: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Decision log generated")
	return nil
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, JSONFile)

	report := map[string]interface{}{
		"report":       r.report,
		"precision":    r.report.Confusion.Precision(),
		"recall":       r.report.Confusion.Recall(),
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}
