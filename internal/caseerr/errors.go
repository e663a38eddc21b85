// Package caseerr defines the error taxonomy shared across pipeline stages.
package caseerr

import "errors"

// Sentinel errors for the pipeline and API surface. Stages wrap these with
// fmt.Errorf("...: %w", ...) so callers can classify with errors.Is.
var (
	// ErrParse indicates the external extraction call failed or returned
	// unparseable content.
	ErrParse = errors.New("document parse failed")

	// ErrMissingDependency indicates a required predecessor artifact is absent.
	ErrMissingDependency = errors.New("missing required artifact")

	// ErrStageOrder indicates a pipeline stage was invoked out of sequence.
	ErrStageOrder = errors.New("stage invoked out of order")

	// ErrValidation indicates a malformed upload or input.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
