package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies engine failures for callers and transports.
type ErrorKind string

const (
	KindUnavailable     ErrorKind = "configuration_unavailable"
	KindValidation      ErrorKind = "validation_error"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindDeliveryFailure ErrorKind = "upstream_delivery_failure"
)

// AppError is the single error type surfaced by the engine.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error

	// ExistingCheckIn is set on the duplicate open-session conflict.
	ExistingCheckIn *time.Time
	// ExistingSessionID accompanies ExistingCheckIn.
	ExistingSessionID string
	// RecordedResponse is set when a completed reminder is answered again.
	RecordedResponse *ResponseType
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Validationf rejects malformed input before any mutation.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf reports a missing worker, session, reminder or branch.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflictf reports an invariant violation.
func Conflictf(format string, args ...any) *AppError {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a storage failure; the engine fails closed on it.
func Unavailable(op string, err error) *AppError {
	return &AppError{Kind: KindUnavailable, Message: op, Err: err}
}

// DeliveryFailure wraps a dispatcher error; the triggering state change stands.
func DeliveryFailure(channel string, err error) *AppError {
	return &AppError{Kind: KindDeliveryFailure, Message: "dispatch via " + channel, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsNotFound(err error) bool        { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool        { return KindOf(err) == KindConflict }
func IsValidation(err error) bool      { return KindOf(err) == KindValidation }
func IsUnavailable(err error) bool     { return KindOf(err) == KindUnavailable }
func IsDeliveryFailure(err error) bool { return KindOf(err) == KindDeliveryFailure }

// AsAppError extracts the *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
