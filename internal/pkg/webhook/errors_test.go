package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err       error
		status    int
		retryable bool
	}{
		{nil, http.StatusOK, false},
		{fmt.Errorf("%w: Missing required field: payment", ErrValidation), http.StatusBadRequest, false},
		{fmt.Errorf("%w: asaas access token mismatch", ErrInvalidSignature), http.StatusUnauthorized, false},
		{ErrRateLimited, http.StatusTooManyRequests, false},
		{fmt.Errorf("%w: \"paypal\"", ErrUnsupportedProvider), http.StatusNotFound, false},
		{fmt.Errorf("%w: 12", ErrEntryNotFound), http.StatusNotFound, false},
		{ErrDuplicateEvent, http.StatusOK, false},
		{fmt.Errorf("%w: order 9 not found", ErrBusinessRuleViolation), http.StatusOK, false},
		{errors.New("deadlock found when trying to get lock"), http.StatusInternalServerError, true},
		{fmt.Errorf("lock payment: %w", context.DeadlineExceeded), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.status {
			t.Fatalf("StatusCode(%v) = %d, want %d", tt.err, got, tt.status)
		}
		if got := IsRetryable(tt.err); got != tt.retryable {
			t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}
