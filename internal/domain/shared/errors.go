// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")

	// State errors - expected races under concurrent access; callers should
	// treat these as "read the authoritative state and move on".
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// Collaborator errors - repository or scheduler failures surfaced to the
	// caller without partial mutation.
	ErrRepository         = errors.New("repository failure")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "streak", "gamification", "recovery"
	Op      string // Operation that failed, e.g., "RecordActivity", "AwardPoints"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
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

// Streak domain errors
var (
	ErrStreakNotFound      = NewDomainError("streak", "Find", ErrNotFound, "streak not found")
	ErrStreakAlreadyExists = NewDomainError("streak", "Create", ErrAlreadyExists, "streak already exists")
	ErrInvalidStreakType   = NewDomainError("streak", "Validate", ErrInvalidInput, "unknown streak type")
	ErrStreakNotBroken     = NewDomainError("streak", "CheckState", ErrInvalidState, "streak is not broken")
	ErrActivityInPast      = NewDomainError("streak", "RecordActivity", ErrInvalidInput, "activity predates last recorded activity")
)

// Recovery domain errors
var (
	ErrRecoveryNotFound    = NewDomainError("recovery", "Find", ErrNotFound, "recovery not found")
	ErrRecoveryAlreadyOpen = NewDomainError("recovery", "Initiate", ErrAlreadyExists, "an open recovery already exists for this streak")
	ErrRecoveryClosed      = NewDomainError("recovery", "ProcessAction", ErrAlreadyProcessed, "recovery is already completed or failed")
	ErrRecoveryExpired     = NewDomainError("recovery", "ProcessAction", ErrExpired, "recovery grace window has elapsed")
)

// Gamification domain errors
var (
	ErrProfileNotFound     = NewDomainError("gamification", "Find", ErrNotFound, "gamification profile not found")
	ErrUnknownAction       = NewDomainError("gamification", "Validate", ErrInvalidInput, "unknown action type")
	ErrInvalidLimit        = NewDomainError("gamification", "Validate", ErrValueOutOfRange, "limit must be positive")
	ErrAchievementNotFound = NewDomainError("gamification", "FindAchievement", ErrNotFound, "achievement not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error (rejected before
// any state mutation).
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is a state-conflict error (an expected race:
// the operation targeted an entity in an unexpected state).
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrOptimisticLock)
}

// IsCollaboratorFailure checks if the error came from a collaborator
// (repository, cache, scheduler) rather than from domain logic.
func IsCollaboratorFailure(err error) bool {
	return errors.Is(err, ErrRepository) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be safely retried by the caller.
// Commands are pure state-in/state-out, so optimistic lock conflicts are
// always retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrOptimisticLock) ||
		errors.Is(err, ErrConcurrentModification)
}
