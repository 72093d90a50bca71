package engine

import "fmt"

// ValidationError indicates input that fails a business rule.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

func validationf(format string, args ...any) ValidationError {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidIndexError indicates an out-of-range reorder request.
type InvalidIndexError struct {
	Index int
	Len   int
}

func (e InvalidIndexError) Error() string {
	return fmt.Sprintf("index %d out of range for %d parts", e.Index, e.Len)
}
