package common

import (
	"errors"
	"fmt"
)

// Error codes for the failure taxonomy. Only configuration and output-write
// failures abort a run; extraction failures degrade the affected record.
const (
	CodeConfiguration = "CONFIG_ERROR"
	CodeExtraction    = "EXTRACTION_ERROR"
	CodeOutputWrite   = "OUTPUT_WRITE_ERROR"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's code, so errors.Is(err, ErrConfiguration) works
// for any CONFIG_ERROR regardless of its cause.
func (e *AppError) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Code == CodeConfiguration
	case ErrExtractionService:
		return e.Code == CodeExtraction
	case ErrOutputWrite:
		return e.Code == CodeOutputWrite
	}
	return false
}

// Common application errors
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrExtractionService = errors.New("extraction service error")
	ErrOutputWrite       = errors.New("output write error")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("resource not found")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func ConfigurationError(message string, cause error) *AppError {
	return NewAppError(CodeConfiguration, message, cause)
}

func ExtractionServiceError(message string, cause error) *AppError {
	return NewAppError(CodeExtraction, message, cause)
}

func OutputWriteError(message string, cause error) *AppError {
	return NewAppError(CodeOutputWrite, message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrOutputWrite)
}
