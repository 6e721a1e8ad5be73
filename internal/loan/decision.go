package loan

import (
	"github.com/shopspring/decimal"
)

// Label is the classifier's native binary outcome.
type Label int

const (
	Declined Label = 0
	Approved Label = 1
)

// LabelFromClass converts a classifier class to a Label. Only class 1 is
// approval; every other class declines.
func LabelFromClass(class int) Label {
	if class == 1 {
		return Approved
	}
	return Declined
}

func (l Label) String() string {
	if l == Approved {
		return "APPROVED"
	}
	return "DECLINED"
}

// Decision is derived per request and never persisted.
type Decision struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"` // percent, 0-100, two decimals
	DTIRatio   float64 `json:"dti_ratio"`  // raw ratio, not a percentage
	Advice     string  `json:"advice"`
}

// Response is the serving representation of a Decision.
type Response struct {
	Status string  `json:"status"`
	Score  float64 `json:"score"`
	Advice string  `json:"advice"`
	DTI    float64 `json:"dti"` // percent, one decimal
}

// Response converts the decision into its serving shape.
func (d Decision) Response() Response {
	return Response{
		Status: d.Label.String(),
		Score:  Round(d.Confidence, 2),
		Advice: d.Advice,
		DTI:    Round(d.DTIRatio*100, 1),
	}
}

// Round rounds half away from zero at the given number of decimal places.
// Values are converted through their shortest decimal representation so that
// 0.8*100 rounds to 80 rather than 80.00000000000001.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundBank rounds half to even, matching the rounding used for whole currency
// amounts in advice text.
func RoundBank(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).RoundBank(places).InexactFloat64()
}
