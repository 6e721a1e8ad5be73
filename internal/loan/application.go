// Package loan defines the request and decision types shared by the scoring
// pipeline: the raw application field map submitted by the form, the decision
// produced by the inference engine and the response returned to callers.
package loan

import (
	"math"
	"strconv"
	"strings"
)

// Application is the raw field map submitted for scoring. Lookups are by
// field name only; unknown fields are ignored by every consumer.
type Application map[string]string

// missing values as written by spreadsheets, pandas exports and empty form inputs
var naTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// IsMissing reports whether a raw cell value denotes an absent value.
func IsMissing(v string) bool {
	_, ok := naTokens[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// ParseNumber coerces a raw value. The second result is false when the value is
// missing; malformed or non-finite values coerce to 0.
func ParseNumber(v string) (float64, bool) {
	if IsMissing(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true
	}
	return f, true
}

// Number returns the coerced numeric value of field and whether it was provided.
func (a Application) Number(field string) (float64, bool) {
	v, ok := a[field]
	if !ok {
		return 0, false
	}
	return ParseNumber(v)
}

// NumberOr returns the coerced value of field, or def when the field is missing.
func (a Application) NumberOr(field string, def float64) float64 {
	if f, ok := a.Number(field); ok {
		return f
	}
	return def
}

// Text returns the trimmed value of field and whether the field was submitted.
func (a Application) Text(field string) (string, bool) {
	v, ok := a[field]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// WithDefaults returns a copy of the application where every field in defaults
// that was not submitted is set to its default value.
func (a Application) WithDefaults(defaults map[string]string) Application {
	out := make(Application, len(a)+len(defaults))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range defaults {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}
