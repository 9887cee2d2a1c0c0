package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies an error for retry decisions. The job queue consults the
// kind of a handler error to decide between requeue-with-backoff and the
// dead letter queue.
type Kind string

const (
	// KindTransient covers network I/O failures, upstream 5xx, rate limits
	// and lease loss. Retryable.
	KindTransient Kind = "transient"
	// KindValidation covers schema mismatches, dimension mismatches and
	// out-of-bounds values. Never retried.
	KindValidation Kind = "validation"
	// KindConsistency covers optimistic-concurrency conflicts. The losing
	// side aborts without side effects.
	KindConsistency Kind = "consistency"
	// KindDegraded marks work that completed in a reduced mode.
	KindDegraded Kind = "degraded"
	// KindConfig covers fatal configuration errors (e.g. a format clock
	// whose slots do not sum to an hour).
	KindConfig Kind = "config"
	// KindCancelled covers operator cancellation. Not an error for metrics.
	KindCancelled Kind = "cancelled"
)

// Error represents an application error with HTTP status, error code and
// retry classification.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Kind       Kind
	Internal   error
	Details    map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// Retryable reports whether the queue should retry work that failed with
// this error. Only transient faults are retryable; everything else either
// goes to the DLQ or is a silent abort.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == ""
}

// ToEchoError converts the app error to an echo.HTTPError for proper handling
func (e *Error) ToEchoError() *echo.HTTPError {
	errBody := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		errBody["details"] = e.Details
	}
	return echo.NewHTTPError(e.HTTPStatus, map[string]any{
		"error": errBody,
	})
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Kind:       e.Kind,
		Internal:   err,
		Details:    e.Details,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    message,
		Kind:       e.Kind,
		Internal:   e.Internal,
		Details:    e.Details,
	}
}

// WithDetails returns a copy of the error with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Kind:       e.Kind,
		Internal:   e.Internal,
		Details:    details,
	}
}

// New creates a new application error
func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

// NewKind creates a new application error with a retry classification
func NewKind(status int, code, message string, kind Kind) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
		Kind:       kind,
	}
}

// Common error definitions
var (
	// Resource errors
	ErrNotFound = NewKind(http.StatusNotFound, "not_found", "Resource not found", KindValidation)
	ErrConflict = NewKind(http.StatusConflict, "conflict", "Resource already exists", KindConsistency)

	// Validation errors
	ErrBadRequest = NewKind(http.StatusBadRequest, "bad_request", "Invalid request", KindValidation)
	ErrValidation = NewKind(http.StatusUnprocessableEntity, "validation_error", "Validation failed", KindValidation)

	// Segment state errors
	ErrStateConflict = NewKind(http.StatusConflict, "state_conflict", "Segment was advanced by another worker", KindConsistency)

	// Queue errors
	ErrLeaseLost = NewKind(http.StatusConflict, "lease_lost", "Job lease is no longer held by this worker", KindTransient)

	// Upstream errors
	ErrUpstream           = NewKind(http.StatusBadGateway, "upstream_error", "Upstream service call failed", KindTransient)
	ErrRetrievalDegraded  = NewKind(http.StatusServiceUnavailable, "retrieval_degraded", "Embedding backend unavailable", KindTransient)
	ErrDimensionMismatch  = NewKind(http.StatusUnprocessableEntity, "dimension_mismatch", "Embedding vector has wrong dimension", KindValidation)
	ErrScriptOutOfBounds  = NewKind(http.StatusUnprocessableEntity, "script_out_of_bounds", "Generated script length is out of bounds", KindValidation)
	ErrDurationOutOfRange = NewKind(http.StatusUnprocessableEntity, "duration_out_of_range", "Rendered audio duration is outside the slot bounds", KindValidation)

	// Configuration errors
	ErrSlotSumMismatch = NewKind(http.StatusUnprocessableEntity, "slot_sum_mismatch", "Format clock slot durations must sum to 3600 seconds", KindConfig)

	// Server errors
	ErrInternal = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrDatabase = NewKind(http.StatusInternalServerError, "database_error", "Database operation failed", KindTransient)
)

// KindOf extracts the retry classification from any error. Unknown errors
// are treated as transient so that unexpected faults get retried rather than
// dead-lettered on first sight.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	return KindTransient
}

// IsNotFound reports whether an error is a not-found app error.
func IsNotFound(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusNotFound
}

// IsRetryable reports whether an arbitrary error should be retried.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindConfig, KindCancelled:
		return false
	case KindConsistency:
		return false
	default:
		return true
	}
}

// NewBadRequest creates a bad request error with a custom message
func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

// NewNotFound creates a not found error for a resource type and ID
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewInternal creates an internal error with a message and optional wrapped error
func NewInternal(message string, err error) *Error {
	return &Error{
		HTTPStatus: http.StatusInternalServerError,
		Code:       "internal_error",
		Message:    message,
		Internal:   err,
	}
}
