package interview

import (
	"errors"
	"fmt"

	"github.com/snarg/mockprep/internal/database"
)

var (
	ErrNotFound           = database.ErrNotFound
	ErrAlreadyAnswered    = errors.New("question already answered")
	ErrRecordingsDisabled = errors.New("recording storage is not configured")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// GenerationError wraps a failure to obtain a usable model reply.
// Stage is "generate" when the provider failed and "normalize" when the
// reply could not be turned into the expected document.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
