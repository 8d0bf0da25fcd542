package billing

import "github.com/ManuelReschke/PayHook/app/models"

// PaymentStatusToOrderStatus maps a canonical payment status onto the order
// vocabulary.
func PaymentStatusToOrderStatus(status string) (string, bool) {
	switch status {
	case models.PaymentStatusPending:
		return models.OrderStatusPending, true
	case models.PaymentStatusPaid:
		return models.OrderStatusPaid, true
	case models.PaymentStatusFailed:
		return models.OrderStatusPaymentFailed, true
	case models.PaymentStatusRefunded:
		return models.OrderStatusRefunded, true
	case models.PaymentStatusCancelled:
		return models.OrderStatusCancelled, true
	default:
		return "", false
	}
}

// PaymentStatusToSubscriptionStatus maps a payment status onto the
// subscription it renews. Pending payments leave the subscription alone.
func PaymentStatusToSubscriptionStatus(status string) (string, bool) {
	switch status {
	case models.PaymentStatusPaid:
		return models.BillingStatusActive, true
	case models.PaymentStatusFailed:
		return models.BillingStatusPastDue, true
	case models.PaymentStatusRefunded, models.PaymentStatusCancelled:
		return models.BillingStatusCanceled, true
	default:
		return "", false
	}
}
