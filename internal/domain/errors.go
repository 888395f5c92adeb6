package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrScopeNotFound is returned when a question names no quoted company.
	ErrScopeNotFound = errors.New("company name not found in question")
	// ErrNoContext is returned when retrieval yields nothing.
	ErrNoContext = errors.New("no relevant context found")
	// ErrModelInvocation wraps failures of the chat capability.
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrParse marks a model response that is not a usable JSON answer.
	ErrParse = errors.New("failed to parse model response")
	// ErrDimensionMismatch matches every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyInput is returned when asked to embed blank text.
	ErrEmptyInput = errors.New("empty input")
)

// DimensionMismatchError reports a vector whose length differs from the
// dimension fixed at store initialization.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is lets errors.Is match ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
