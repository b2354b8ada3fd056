// Package errors provides the error types shared by the tracking pipeline and
// the agent. Tracking code never surfaces these to a page; they exist so the
// agent can classify and log what went wrong.
package errors

import (
	"errors"
	"fmt"
)

// New is errors.New, re-exported so callers need a single errors import.
var New = errors.New

// Is is errors.Is.
var Is = errors.Is

var (
	// ErrInvalidInput indicates a malformed signal, call or request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownTab indicates a signal for a tab with no live session.
	ErrUnknownTab = errors.New("unknown tab")

	// ErrCapabilityMissing indicates the host lacks a browser capability.
	ErrCapabilityMissing = errors.New("capability missing")

	// ErrPermissionDenied indicates the host refused a permission prompt.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")
)

// ValidationError represents a validation failure on a single field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// TabError ties an error to the tab it happened on.
type TabError struct {
	TabID string
	Err   error
}

// Error implements the error interface
func (e *TabError) Error() string {
	return fmt.Sprintf("tab %s: %v", e.TabID, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TabError) Unwrap() error {
	return e.Err
}

// NewTabError creates a new TabError
func NewTabError(tabID string, err error) *TabError {
	return &TabError{TabID: tabID, Err: err}
}

// PositionError mirrors the geolocation failure codes a host reports.
type PositionError struct {
	Code    int
	Message string
}

// Geolocation failure codes.
const (
	PositionPermissionDenied = 1
	PositionUnavailable      = 2
	PositionTimeout          = 3
)

// Error implements the error interface
func (e *PositionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("geolocation error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("geolocation error %d", e.Code)
}

// Is implements errors.Is support
func (e *PositionError) Is(target error) bool {
	switch e.Code {
	case PositionPermissionDenied:
		return target == ErrPermissionDenied
	case PositionTimeout:
		return target == ErrTimeout
	}
	return false
}
