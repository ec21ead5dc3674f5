package engine

import (
	"errors"
	"fmt"
)

// AnalysisError is a failure of the analysis itself, as opposed to a
// diagnostic about the analyzed program. Diagnostics never surface as
// AnalysisError; they are returned in Result.
type AnalysisError struct {
	// Code identifies the error category.
	Code AnalysisErrorCode

	// Stage names the pipeline stage that failed.
	Stage string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// AnalysisErrorCode categorizes analysis errors.
type AnalysisErrorCode string

const (
	// ErrCodeCanceled indicates the context was canceled between stages.
	ErrCodeCanceled AnalysisErrorCode = "CANCELED"

	// ErrCodeOracleFailed indicates the Datalog cross-check could not run.
	ErrCodeOracleFailed AnalysisErrorCode = "ORACLE_FAILED"

	// ErrCodeFingerprint indicates the annotated program could not be
	// canonicalized.
	ErrCodeFingerprint AnalysisErrorCode = "FINGERPRINT_FAILED"
)

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("%s: %s (stage=%s)", e.Code, e.Message, e.Stage)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AnalysisError) Unwrap() error { return e.Err }

// IsCanceled returns true if the analysis stopped because its context
// was canceled. Uses errors.As to handle wrapped errors.
func IsCanceled(err error) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Code == ErrCodeCanceled
	}
	return false
}

func newCanceledError(stage string, err error) *AnalysisError {
	return &AnalysisError{
		Code:    ErrCodeCanceled,
		Stage:   stage,
		Message: "analysis canceled",
		Err:     err,
	}
}
