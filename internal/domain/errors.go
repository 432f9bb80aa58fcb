package domain

import (
	"errors"
	"fmt"
)

// ErrCacheMiss is returned by CacheRepo.GetAvailability when no cached
// value exists. It is never a caller-visible failure: Intake falls
// through to the authoritative repository read on a miss.
var ErrCacheMiss = errors.New("cache miss")

// ErrCode is a closed set of caller-visible failure kinds (spec §7).
// Buyers only ever see UNAVAILABLE plus the three terminal intent statuses;
// everything else is either an internal detail or hidden behind retries.
type ErrCode string

const (
	CodeInvalidRequest ErrCode = "INVALID_REQUEST"
	CodeNotFound       ErrCode = "NOT_FOUND"
	CodeForbidden      ErrCode = "FORBIDDEN"
	CodeUnavailable    ErrCode = "UNAVAILABLE"
	CodeInsufficient   ErrCode = "INSUFFICIENT"
	CodeEventPast      ErrCode = "EVENT_PAST"
	CodeConflict       ErrCode = "CONFLICT"
	CodeTimeout        ErrCode = "TIMEOUT"
	CodeInternal       ErrCode = "INTERNAL"
)

// AppError carries a closed error code plus an operator-facing message.
// Retryable codes (CONFLICT, TIMEOUT) are handled inside the Processor and
// never surfaced to callers directly.
type AppError struct {
	Code    ErrCode
	Message string
	Meta    map[string]string
}

func (e *AppError) Error() string {
	if len(e.Meta) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Meta)
}

func ErrInvalidRequest(msg string) error { return &AppError{Code: CodeInvalidRequest, Message: msg} }
func ErrInvalidRequestMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeInvalidRequest, Message: msg, Meta: meta}
}
func ErrNotFound(msg string) error    { return &AppError{Code: CodeNotFound, Message: msg} }
func ErrForbidden(msg string) error   { return &AppError{Code: CodeForbidden, Message: msg} }
func ErrUnavailable(msg string) error { return &AppError{Code: CodeUnavailable, Message: msg} }
func ErrInsufficient(msg string) error {
	return &AppError{Code: CodeInsufficient, Message: msg}
}
func ErrEventPast(msg string) error { return &AppError{Code: CodeEventPast, Message: msg} }
func ErrConflict(msg string) error  { return &AppError{Code: CodeConflict, Message: msg} }
func ErrTimeout(msg string) error   { return &AppError{Code: CodeTimeout, Message: msg} }
func ErrInternal(msg string) error  { return &AppError{Code: CodeInternal, Message: msg} }

// CodeOf extracts the ErrCode from err, defaulting to CodeInternal for
// errors that did not originate as an AppError.
func CodeOf(err error) ErrCode {
	if err == nil {
		return ""
	}
	if ae, ok := err.(*AppError); ok {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code ErrCode) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Code == code
}
