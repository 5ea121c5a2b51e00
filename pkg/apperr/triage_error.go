// Package apperr provides structured application errors for the triage
// pipeline. Every recoverable pipeline failure carries one of the codes below
// so degraded behavior is attributable in logs and the audit trail.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Pipeline degradation codes. Each maps to a documented fallback; none
	// of them may leave a message stuck in processing.
	CodeClassificationDegraded = "CLASSIFICATION_DEGRADED" // fallback general/30
	CodeGroundingUnavailable   = "GROUNDING_UNAVAILABLE"   // proceed ungrounded
	CodeSentimentUnavailable   = "SENTIMENT_UNAVAILABLE"   // skip sentiment escalation
	CodeThreadLinkFailure      = "THREAD_LINK_FAILURE"     // treat as first message
	CodeHandlerFailure         = "HANDLER_FAILURE"         // low-confidence fallback reply
	CodeDeliveryFailure        = "DELIVERY_FAILURE"        // route to escalation
	CodeSafetyRejected         = "SAFETY_REJECTED"         // block send, no auto retry

	// Validation errors
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeBadRequest       = "BAD_REQUEST"

	// Resource errors
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeConflict      = "CONFLICT"

	// External errors
	CodeDatabaseError = "DATABASE_ERROR"
	CodeExternalError = "EXTERNAL_ERROR"

	// Internal errors
	CodeInternalError = "INTERNAL_ERROR"
	CodeTimeout       = "TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// Constructor functions
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Pipeline degradation errors

func ClassificationDegraded(err error) *AppError {
	return Wrap(err, CodeClassificationDegraded, "classification oracle failed, using fallback result", http.StatusServiceUnavailable)
}

func GroundingUnavailable(err error) *AppError {
	return Wrap(err, CodeGroundingUnavailable, "knowledge grounding unavailable, proceeding ungrounded", http.StatusServiceUnavailable)
}

func SentimentUnavailable(err error) *AppError {
	return Wrap(err, CodeSentimentUnavailable, "sentiment oracle failed, skipping sentiment escalation", http.StatusServiceUnavailable)
}

func ThreadLinkFailure(err error) *AppError {
	return Wrap(err, CodeThreadLinkFailure, "thread storage unavailable, treating as first message", http.StatusServiceUnavailable)
}

func HandlerFailure(err error) *AppError {
	return Wrap(err, CodeHandlerFailure, "reply handler failed, using conservative fallback", http.StatusServiceUnavailable)
}

func DeliveryFailure(err error) *AppError {
	return Wrap(err, CodeDeliveryFailure, "delivery failed, routing to escalation", http.StatusBadGateway)
}

func SafetyRejected(layer, reason string) *AppError {
	return New(CodeSafetyRejected, "proposed reply blocked by safety gate", http.StatusUnprocessableEntity).
		WithDetail("layer", layer).
		WithDetail("reason", reason)
}

// Resource errors

func NotFound(message string) *AppError {
	if message == "" {
		message = "resource not found"
	}
	return New(CodeNotFound, message, http.StatusNotFound)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

func Database(err error) *AppError {
	return Wrap(err, CodeDatabaseError, "database operation failed", http.StatusInternalServerError)
}

func Internal(err error) *AppError {
	return Wrap(err, CodeInternalError, "internal error", http.StatusInternalServerError)
}

// Helpers

// IsCode reports whether err carries the given application error code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// AsAppError extracts an *AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
