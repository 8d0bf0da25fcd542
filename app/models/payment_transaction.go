package models

import "time"

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusPaid      = "PAID"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
	PaymentStatusCancelled = "CANCELLED"
)

// PaymentTransaction is the canonical internal record of a provider payment.
// It is mutated only by the webhook transition engine.
type PaymentTransaction struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Provider          string     `gorm:"type:varchar(20);not null;index:ux_payment_transactions_provider_payment,unique,priority:1" json:"provider"`
	ProviderPaymentID string     `gorm:"type:varchar(191);not null;index:ux_payment_transactions_provider_payment,unique,priority:2" json:"provider_payment_id"`
	Status            string     `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	Amount            float64    `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	OrderRef          string     `gorm:"type:varchar(191);not null;default:'';index" json:"order_ref"`
	SubscriptionRef   string     `gorm:"type:varchar(191);not null;default:'';index" json:"subscription_ref"`
	LastEventID       string     `gorm:"type:varchar(191);not null;default:''" json:"last_event_id"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminalPaymentStatus reports whether a payment in status can no longer
// change state.
func IsTerminalPaymentStatus(status string) bool {
	return status == PaymentStatusRefunded || status == PaymentStatusCancelled
}
