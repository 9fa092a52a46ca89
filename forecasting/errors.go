package forecasting

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every request validation failure
	ErrValidation = errors.New("validation failed")
	// ErrPipeline wraps unexpected failures inside the analysis stages
	ErrPipeline = errors.New("forecast pipeline failed")
)

// ValidationError names the violated constraint
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func pipelineError(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPipeline, stage, err)
}
