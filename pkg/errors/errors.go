package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Detail  interface{} `json:"detail,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Duty workflow errors carry enough context for the UI to explain the
	// rejection; callers attach restriction or conflict detail via Detailed.
	ErrSlotUnavailable   = New("SLOT_UNAVAILABLE", http.StatusConflict, "no free slot remains for this session")
	ErrTimeConflict      = New("TIME_CONFLICT", http.StatusConflict, "an existing duty overlaps this session")
	ErrQuotaNotMet       = New("QUOTA_NOT_MET", http.StatusUnprocessableEntity, "priority slot quota not yet met")
	ErrQuotaViolation    = New("QUOTA_VIOLATION", http.StatusUnprocessableEntity, "release would drop below the priority slot quota")
	ErrAlreadyConfirmed  = New("ALREADY_CONFIRMED", http.StatusConflict, "duty selection already confirmed")
	ErrRequirementNotMet = New("REQUIREMENT_NOT_MET", http.StatusUnprocessableEntity, "minimum duty requirement not met")
	ErrPastDeadline      = New("PAST_DEADLINE", http.StatusUnprocessableEntity, "selection deadline has passed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Detailed clones the error and attaches a structured detail payload.
func Detailed(err *Error, message string, detail interface{}) *Error {
	clone := Clone(err, message)
	if clone != nil {
		clone.Detail = detail
	}
	return clone
}
