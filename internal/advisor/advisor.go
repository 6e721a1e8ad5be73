// Package advisor explains scoring decisions with a small fixed rule set.
package advisor

import (
	"fmt"
	"math"

	"loan-scorer/internal/common"
	"loan-scorer/internal/loan"
)

const (
	CreditHistoryAdvice = "Focus on clearing existing debts to improve your Credit History score."
	CoApplicantAdvice   = "Your profile is on the edge. Try applying with a co-applicant to reduce risk."
	ApprovedAdvice      = "Your financial profile is strong. You qualify for our 'Premier' interest rates."

	highDTIAdvice = "DTI ratio is high. Consider an income of roughly $%d or a lower loan amount."
)

// DebtToIncome estimates the monthly payment over a fixed 360 month term and
// divides it by the raw applicant income. Non-positive or missing income is
// replaced by 1 and a negative loan amount counts as 0, so the ratio is never
// negative. The result never depends on the trained EMI feature.
func DebtToIncome(app loan.Application) float64 {
	income := app.NumberOr(common.FieldApplicantIncome, 1)
	if income <= 0 {
		income = 1
	}
	return (loanAmount(app) / common.AdvisoryTermMonths) / income
}

// SuggestedIncome is the monthly income at which the loan would sit at the
// target debt-to-income ratio, rounded half to even.
func SuggestedIncome(app loan.Application) int64 {
	return int64(loan.RoundBank(loanAmount(app)/common.TargetDTIRatio/common.MonthsPerYear, 0))
}

// loanAmount is the requested amount in currency units, floored at 0.
func loanAmount(app loan.Application) float64 {
	return math.Max(app.NumberOr(common.FieldLoanAmount, 0), 0) * common.LoanAmountUnit
}

// Advise returns the single advice text for a decision. Declines are checked
// in order: credit history, debt-to-income ratio, then the generic edge case.
func Advise(app loan.Application, d loan.Decision) string {
	if d.Label == loan.Approved {
		return ApprovedAdvice
	}

	if app.NumberOr(common.FieldCreditHistory, 1) == 0 {
		return CreditHistoryAdvice
	}
	if d.DTIRatio > common.MaxDTIRatio {
		return fmt.Sprintf(highDTIAdvice, SuggestedIncome(app))
	}
	return CoApplicantAdvice
}
