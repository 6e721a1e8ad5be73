package ml

import "errors"

// Failure kinds surfaced by the engine. Callers distinguish them with errors.Is.
var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrInvalidInput   = errors.New("invalid input")
	ErrClassifier     = errors.New("classifier failure")
	ErrNotFitted      = errors.New("classifier is not fitted")
)

// Failure kind labels used in metrics, logs and error responses.
const (
	KindSchemaMismatch = "schema_mismatch"
	KindInvalidInput   = "invalid_input"
	KindClassifier     = "classifier"
	KindInternal       = "internal"
)

// Kind classifies err into one of the failure kind labels.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrClassifier):
		return KindClassifier
	default:
		return KindInternal
	}
}
