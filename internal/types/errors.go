package types

import (
	"errors"
	"fmt"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// ErrNotFound marks lookups for schedules, services or files that do not
// exist. Handlers map it to 404.
var ErrNotFound = errors.New("not found")

// ValidationError is rejected input, raised before any mutation. Maps to 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// DeviceError is a failed, timed-out or unparsable external device command.
// The device reports status ERROR; handlers map it to 500.
type DeviceError struct {
	DeviceID string
	Message  string
	Err      error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device %s: %s: %v", e.DeviceID, e.Message, e.Err)
	}
	return fmt.Sprintf("device %s: %s", e.DeviceID, e.Message)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// DatabaseError wraps storage failures. The wrapped error is for logs only,
// clients see a generic message.
type DatabaseError struct {
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
