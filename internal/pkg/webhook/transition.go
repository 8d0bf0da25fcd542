package webhook

import (
	"fmt"
	"strings"

	"github.com/ManuelReschke/PayHook/app/models"
)

func mercadoPagoStatus(status string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pending", "in_process", "authorized", "in_mediation":
		return models.PaymentStatusPending, true
	case "approved":
		return models.PaymentStatusPaid, true
	case "rejected":
		return models.PaymentStatusFailed, true
	case "refunded", "charged_back":
		return models.PaymentStatusRefunded, true
	case "cancelled":
		return models.PaymentStatusCancelled, true
	default:
		return "", false
	}
}

func asaasStatus(eventType, status string) (string, bool) {
	// Some events carry their outcome in the event name rather than the status.
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "PAYMENT_DELETED":
		return models.PaymentStatusCancelled, true
	case "PAYMENT_REFUNDED":
		return models.PaymentStatusRefunded, true
	}

	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PENDING", "AWAITING_RISK_ANALYSIS":
		return models.PaymentStatusPending, true
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return models.PaymentStatusPaid, true
	case "OVERDUE":
		return models.PaymentStatusFailed, true
	case "REFUNDED", "CHARGEBACK_REQUESTED":
		return models.PaymentStatusRefunded, true
	default:
		return "", false
	}
}

// CanonicalStatus maps the provider status vocabulary onto PaymentTransaction
// statuses. Unknown statuses can never resolve and are business-rule violations.
func CanonicalStatus(ev *Event) (string, error) {
	var (
		status string
		ok     bool
	)
	switch ev.Provider {
	case ProviderMercadoPago:
		status, ok = mercadoPagoStatus(ev.Status)
	case ProviderAsaas:
		status, ok = asaasStatus(ev.Type, ev.Status)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, ev.Provider)
	}
	if !ok {
		return "", fmt.Errorf("%w: unknown %s payment status %q", ErrBusinessRuleViolation, ev.Provider, ev.Status)
	}
	return status, nil
}

var allowedTransitions = map[string]map[string]bool{
	models.PaymentStatusPending: {
		models.PaymentStatusPaid:      true,
		models.PaymentStatusFailed:    true,
		models.PaymentStatusRefunded:  true,
		models.PaymentStatusCancelled: true,
	},
	models.PaymentStatusPaid: {
		models.PaymentStatusRefunded:  true,
		models.PaymentStatusCancelled: true,
	},
	models.PaymentStatusFailed: {
		models.PaymentStatusPaid:      true,
		models.PaymentStatusCancelled: true,
	},
	models.PaymentStatusRefunded:  {},
	models.PaymentStatusCancelled: {},
}

// CheckTransition decides whether a payment may move from one status to
// another. A same-status transition is a no-op; a backward move returns
// ErrBusinessRuleViolation.
func CheckTransition(from, to string) (bool, error) {
	if from == to {
		return false, nil
	}
	if models.IsTerminalPaymentStatus(from) {
		return false, fmt.Errorf("%w: payment already %s", ErrBusinessRuleViolation, from)
	}
	next, known := allowedTransitions[from]
	if !known {
		return false, fmt.Errorf("%w: unknown current status %q", ErrBusinessRuleViolation, from)
	}
	if !next[to] {
		return false, fmt.Errorf("%w: transition %s -> %s not allowed", ErrBusinessRuleViolation, from, to)
	}
	return true, nil
}
