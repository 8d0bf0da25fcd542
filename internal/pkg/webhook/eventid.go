package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeEventID derives the canonical ledger id of an event. Redeliveries of
// the same payload map to the same id; a new status for the same payment maps
// to a new one so each transition is processed once.
func ComputeEventID(provider Provider, ev *Event, rawBody []byte) string {
	if ev == nil || strings.TrimSpace(ev.PaymentID) == "" {
		sum := sha256.Sum256(rawBody)
		return "hash:" + hex.EncodeToString(sum[:])
	}
	parts := []string{
		strings.ToLower(string(provider)),
		strings.ToLower(strings.TrimSpace(ev.Type)),
		strings.TrimSpace(ev.PaymentID),
		strings.ToLower(strings.TrimSpace(ev.Status)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
