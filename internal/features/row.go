// Package features turns raw loan applications into model-ready rows.
//
// The same transformation runs at training time (FitAndClean) and at serving
// time (Transform / TransformRow) so that the classifier always sees features
// computed identically from the frozen training statistics in State.
package features

import (
	"strings"

	"loan-scorer/internal/common"
	"loan-scorer/internal/loan"
)

// MissingCategory is the category value used for blank categorical cells.
const MissingCategory = ""

// Row is one applicant. A column is present when its key exists in either map.
type Row struct {
	Categorical map[string]string
	Numeric     map[string]float64
}

// NewRow returns an empty row with allocated maps.
func NewRow() Row {
	return Row{
		Categorical: make(map[string]string),
		Numeric:     make(map[string]float64),
	}
}

// Has reports whether column is present in the row.
func (r Row) Has(column string) bool {
	if _, ok := r.Numeric[column]; ok {
		return true
	}
	_, ok := r.Categorical[column]
	return ok
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := Row{
		Categorical: make(map[string]string, len(r.Categorical)),
		Numeric:     make(map[string]float64, len(r.Numeric)),
	}
	for k, v := range r.Categorical {
		out.Categorical[k] = v
	}
	for k, v := range r.Numeric {
		out.Numeric[k] = v
	}
	return out
}

// Drop removes column from the row. Dropping an absent column is a no-op.
func (r Row) Drop(column string) {
	delete(r.Categorical, column)
	delete(r.Numeric, column)
}

// FromRecord builds a row from a training table record. Numeric columns are
// coerced (missing cells are left absent, malformed cells become 0); every other
// column is kept as a category, blank cells becoming MissingCategory.
func FromRecord(record map[string]string) Row {
	row := NewRow()
	for column, raw := range record {
		if common.IsNumeric(column) {
			if v, ok := loan.ParseNumber(raw); ok {
				row.Numeric[column] = v
			}
			continue
		}
		if loan.IsMissing(raw) {
			row.Categorical[column] = MissingCategory
			continue
		}
		row.Categorical[column] = strings.TrimSpace(raw)
	}
	return row
}

// servingDefaults apply to optional form fields that were not submitted.
var servingDefaults = map[string]string{
	common.FieldEducation:    common.DefaultEducation,
	common.FieldPropertyArea: common.DefaultPropertyArea,
	common.FieldSelfEmployed: common.DefaultSelfEmployed,
}

// ServingDefaults returns a copy of the defaults applied to form submissions.
func ServingDefaults() map[string]string {
	out := make(map[string]string, len(servingDefaults))
	for k, v := range servingDefaults {
		out[k] = v
	}
	return out
}

// FromApplication builds a serving row from a submitted application. Only the
// known application fields are read. Incomes that were not submitted become 0;
// LoanAmount, Loan_Amount_Term and Credit_History stay absent so the transformer
// fills them from State.
func FromApplication(app loan.Application) Row {
	app = app.WithDefaults(servingDefaults)
	row := NewRow()

	for _, column := range common.CategoricalColumns {
		v, ok := app.Text(column)
		if !ok {
			continue
		}
		if loan.IsMissing(v) {
			v = MissingCategory
		}
		row.Categorical[column] = v
	}

	for _, column := range common.NumericColumns {
		v, ok := app.Number(column)
		if !ok {
			switch column {
			case common.FieldApplicantIncome, common.FieldCoapplicantIncome:
				row.Numeric[column] = 0
			}
			continue
		}
		row.Numeric[column] = v
	}

	return row
}
