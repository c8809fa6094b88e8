package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of application error.
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrServiceUnavailable
)

// Domain error codes for assignment and quota decisions. These are expected
// outcomes, returned to the API layer and mapped to HTTP statuses there.
const (
	ErrClinicUnavailable ErrorCode = iota + 2000
	ErrNurseUnavailable
	ErrPatientNotAssignedToClinic
	ErrNurseClinicMismatch
	ErrNoClinicAvailable
	ErrCapacityRaceLost
	ErrRateLimited
	ErrUserQuotaExceeded
	ErrGlobalQuotaExceeded
	ErrLedgerWriteFailed
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`

	// RetryAfterSeconds is set for rate-limit rejections only.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the ErrorCode carried by err, or ErrInternal when err is not
// an AppError.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func ServiceUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    ErrServiceUnavailable,
		Message: message,
		Err:     err,
	}
}

// ClinicUnavailable covers clinic not found, not approved, inactive or full.
// The reason string distinguishes the cases for caller feedback.
func ClinicUnavailable(reason string) *AppError {
	return &AppError{
		Code:    ErrClinicUnavailable,
		Message: reason,
	}
}

func NurseUnavailable(reason string) *AppError {
	return &AppError{
		Code:    ErrNurseUnavailable,
		Message: reason,
	}
}

func PatientNotAssignedToClinic() *AppError {
	return &AppError{
		Code:    ErrPatientNotAssignedToClinic,
		Message: "patient is not assigned to a clinic yet, assign a clinic first",
	}
}

func NurseClinicMismatch() *AppError {
	return &AppError{
		Code:    ErrNurseClinicMismatch,
		Message: "nurse is not registered at the patient's clinic",
	}
}

func NoClinicAvailable() *AppError {
	return &AppError{
		Code:    ErrNoClinicAvailable,
		Message: "no approved clinic with remaining capacity within range",
	}
}

// CapacityRaceLost reports that a concurrent request won the last slot.
// Callers treat it as "full".
func CapacityRaceLost(resource string) *AppError {
	return &AppError{
		Code:    ErrCapacityRaceLost,
		Message: fmt.Sprintf("%s is at full capacity", resource),
	}
}

func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:              ErrRateLimited,
		Message:           fmt.Sprintf("too many requests, retry in %d seconds", retryAfterSeconds),
		RetryAfterSeconds: retryAfterSeconds,
	}
}

func UserQuotaExceeded() *AppError {
	return &AppError{
		Code:    ErrUserQuotaExceeded,
		Message: "daily chatbot quota exhausted, try again tomorrow",
	}
}

func GlobalQuotaExceeded() *AppError {
	return &AppError{
		Code:    ErrGlobalQuotaExceeded,
		Message: "chatbot service quota exhausted for today, try again tomorrow",
	}
}

func LedgerWriteFailed(err error) *AppError {
	return &AppError{
		Code:    ErrLedgerWriteFailed,
		Message: "failed to record usage",
		Err:     err,
	}
}
