package webhook

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrValidation            = errors.New("invalid webhook payload")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrRateLimited           = errors.New("rate limit exceeded")
	ErrDuplicateEvent        = errors.New("webhook already processed")
	ErrBusinessRuleViolation = errors.New("business rule violation")
	ErrUnsupportedProvider   = errors.New("unsupported provider")
	ErrEntryNotFound         = errors.New("webhook entry not found")
)

// StatusCode maps the pipeline error taxonomy to the HTTP status answered to
// the provider. Unclassified errors are transient processing failures.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnsupportedProvider), errors.Is(err, ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateEvent), errors.Is(err, ErrBusinessRuleViolation):
		// Acknowledged so the provider stops redelivering.
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether a processing error may succeed on another
// attempt. An expired or cancelled request context never does.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return StatusCode(err) == http.StatusInternalServerError
}
