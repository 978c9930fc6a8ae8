// Package shared contains common domain types, errors and events used across
// all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors for errors.Is() checking.
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors. A validation failure is rejected before any side
	// effect takes place and is always scoped to one request.
	ErrValidation   = errors.New("validation error")
	ErrInvalidID    = errors.New("invalid ID")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyValue   = errors.New("value cannot be empty")

	// Persistence errors. A storage call failed; for batch ingestion these
	// are captured per item, for single-shot operations they surface to the
	// caller directly.
	ErrPersistence = errors.New("persistence error")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrSessionInactive = errors.New("no active session")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "monitoring", "course", "roster"
	Op      string // operation that failed, e.g., "Start", "Finalize"
	Kind    error  // base error type for errors.Is() checking
	Message string // human-readable message
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Validation creates a validation error for the given domain and operation.
func Validation(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, message)
}

// Persistence wraps a storage failure with domain context.
func Persistence(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrPersistence, "storage operation failed", err)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsPersistence reports whether err is a persistence error.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// Monitoring domain errors
var (
	ErrCourseIDRequired  = NewDomainError("monitoring", "Start", ErrValidation, "a positive course ID is required")
	ErrDurationRequired  = NewDomainError("monitoring", "Start", ErrValidation, "duration must be positive")
	ErrDetectionsMissing = NewDomainError("monitoring", "ProcessFrame", ErrValidation, "detections array is required")
	ErrStudentIDRequired  = NewDomainError("monitoring", "RecordEngagement", ErrValidation, "student ID is required")
	ErrScoreRequired      = NewDomainError("monitoring", "RecordEngagement", ErrValidation, "attention score is required")
	ErrStudentIDsRequired = NewDomainError("monitoring", "RecordAttendance", ErrValidation, "student_ids array is required")
)

// Course domain errors
var (
	ErrCourseNotFound     = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrOccurrenceNotFound = NewDomainError("course", "Find", ErrNotFound, "course session not found")
)

// Roster domain errors
var (
	ErrStudentNotFound      = NewDomainError("roster", "Find", ErrNotFound, "student not found")
	ErrStudentNameRequired  = NewDomainError("roster", "Validate", ErrValidation, "student name is required")
	ErrStudentAlreadyExists = NewDomainError("roster", "Create", ErrAlreadyExists, "student already exists")
)
