package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Limiter bounds the number of requests per key within a fixed window.
// Implementations must increment atomically across every server instance
// sharing the store.
type Limiter interface {
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Key builds the counter key for a provider and client identity.
func Key(provider, clientID string) string {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		clientID = "unknown"
	}
	return fmt.Sprintf("%s:%s", strings.ToLower(strings.TrimSpace(provider)), clientID)
}

// windowIndex returns the fixed window the instant falls into.
func windowIndex(now time.Time, window time.Duration) int64 {
	if window <= 0 {
		window = time.Minute
	}
	return now.UnixMilli() / window.Milliseconds()
}
