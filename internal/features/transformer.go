package features

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"loan-scorer/internal/common"
)

var (
	ErrZeroLoanTerm  = errors.New("loan amount term is zero")
	ErrMissingIncome = errors.New("income is missing")
	ErrInvalidIncome = errors.New("total income must be greater than -1")
)

// RowError reports a row that could not be transformed.
type RowError struct {
	Index int
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// State holds the statistics fitted on the training table. It is a value type
// and is never modified after Fit returns.
type State struct {
	GenderMode        string  `json:"gender_mode"`
	MarriedMode       string  `json:"married_mode"`
	LoanAmountMedian  float64 `json:"loan_amount_median"`
	CreditHistoryMode float64 `json:"credit_history_mode"`
	Fitted            bool    `json:"fitted"`
}

func (s State) gender() string {
	if !s.Fitted {
		return common.FallbackGender
	}
	return s.GenderMode
}

func (s State) married() string {
	if !s.Fitted {
		return common.FallbackMarried
	}
	return s.MarriedMode
}

func (s State) loanAmount() float64 {
	if !s.Fitted {
		return common.FallbackLoanAmount
	}
	return s.LoanAmountMedian
}

func (s State) creditHistory() float64 {
	if !s.Fitted {
		return common.FallbackCreditHistory
	}
	return s.CreditHistoryMode
}

// Fit computes the fill statistics from training rows. A statistic with no
// observed values takes its fallback constant.
func Fit(rows []Row) State {
	s := State{Fitted: true}

	var ok bool
	if s.GenderMode, ok = categoricalMode(rows, common.FieldGender); !ok {
		s.GenderMode = common.FallbackGender
	}
	if s.MarriedMode, ok = categoricalMode(rows, common.FieldMarried); !ok {
		s.MarriedMode = common.FallbackMarried
	}
	if s.LoanAmountMedian, ok = numericMedian(rows, common.FieldLoanAmount); !ok {
		s.LoanAmountMedian = common.FallbackLoanAmount
	}
	if s.CreditHistoryMode, ok = numericMode(rows, common.FieldCreditHistory); !ok {
		s.CreditHistoryMode = common.FallbackCreditHistory
	}

	return s
}

// FitAndClean fits the statistics on rows and returns them with the cleaned
// rows. Rows that fail are reported in the returned errors and omitted.
func FitAndClean(rows []Row) (State, []Row, []RowError) {
	s := Fit(rows)
	cleaned, failed := Transform(s, rows)
	return s, cleaned, failed
}

// Transform cleans rows with the given state. Successful rows are returned in
// input order; failed rows are omitted and reported by index.
func Transform(s State, rows []Row) ([]Row, []RowError) {
	cleaned := make([]Row, 0, len(rows))
	var failed []RowError
	for i, row := range rows {
		out, err := TransformRow(s, row)
		if err != nil {
			failed = append(failed, RowError{Index: i, Err: err})
			continue
		}
		cleaned = append(cleaned, out)
	}
	return cleaned, failed
}

// TransformRow fills missing values, derives the engineered features and drops
// Loan_ID. The input row is not modified.
func TransformRow(s State, row Row) (Row, error) {
	out := row.Clone()
	out.Drop(common.FieldLoanID)

	if v, ok := out.Categorical[common.FieldGender]; !ok || v == MissingCategory {
		out.Categorical[common.FieldGender] = s.gender()
	}
	if v, ok := out.Categorical[common.FieldMarried]; !ok || v == MissingCategory {
		out.Categorical[common.FieldMarried] = s.married()
	}
	if _, ok := out.Numeric[common.FieldLoanAmount]; !ok {
		out.Numeric[common.FieldLoanAmount] = s.loanAmount()
	}
	if _, ok := out.Numeric[common.FieldCreditHistory]; !ok {
		out.Numeric[common.FieldCreditHistory] = s.creditHistory()
	}
	if _, ok := out.Numeric[common.FieldLoanAmountTerm]; !ok {
		out.Numeric[common.FieldLoanAmountTerm] = common.DefaultLoanAmountTerm
	}

	applicant, ok := out.Numeric[common.FieldApplicantIncome]
	if !ok {
		return Row{}, fmt.Errorf("%w: %s", ErrMissingIncome, common.FieldApplicantIncome)
	}
	coapplicant, ok := out.Numeric[common.FieldCoapplicantIncome]
	if !ok {
		return Row{}, fmt.Errorf("%w: %s", ErrMissingIncome, common.FieldCoapplicantIncome)
	}
	total := applicant + coapplicant
	if total+1 <= 0 {
		return Row{}, fmt.Errorf("%w: got %.2f", ErrInvalidIncome, total)
	}

	term := out.Numeric[common.FieldLoanAmountTerm]
	if term == 0 {
		return Row{}, ErrZeroLoanTerm
	}

	out.Numeric[common.FeatureTotalIncome] = total
	out.Numeric[common.FeatureEMI] = out.Numeric[common.FieldLoanAmount] / term
	out.Numeric[common.FeatureTotalIncomeLog] = math.Log(total + 1)

	return out, nil
}

// OutputColumns returns the column order of transformed rows for a table with
// the given header: Loan_ID is dropped and the filled or derived columns that
// the header lacks are appended in the order the transformer creates them.
func OutputColumns(header []string) []string {
	cols := make([]string, 0, len(header)+4)
	seen := make(map[string]bool, len(header)+4)
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}

	for _, c := range header {
		if c == common.FieldLoanID {
			continue
		}
		add(c)
	}
	for _, c := range []string{
		common.FieldGender,
		common.FieldMarried,
		common.FieldLoanAmount,
		common.FieldCreditHistory,
		common.FieldLoanAmountTerm,
		common.FeatureTotalIncome,
		common.FeatureEMI,
		common.FeatureTotalIncomeLog,
	} {
		add(c)
	}
	return cols
}

// categoricalMode returns the most frequent non-missing value; ties go to the
// lexicographically smallest value.
func categoricalMode(rows []Row, column string) (string, bool) {
	counts := make(map[string]int)
	for _, r := range rows {
		if v, ok := r.Categorical[column]; ok && v != MissingCategory {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Strings(values)

	best := values[0]
	for _, v := range values[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

func numericMode(rows []Row, column string) (float64, bool) {
	counts := make(map[float64]int)
	for _, r := range rows {
		if v, ok := r.Numeric[column]; ok {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return 0, false
	}

	values := make([]float64, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Float64s(values)

	best := values[0]
	for _, v := range values[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

func numericMedian(rows []Row, column string) (float64, bool) {
	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.Numeric[column]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, false
	}

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], true
	}
	return (values[mid-1] + values[mid]) / 2, true
}
