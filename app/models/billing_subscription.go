package models

import "time"

const (
	BillingStatusActive   = "active"
	BillingStatusPastDue  = "past_due"
	BillingStatusCanceled = "canceled"
)

// BillingSubscription mirrors a provider subscription. It is owned by the
// business domain; the webhook pipeline only moves its status.
type BillingSubscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	Provider               string     `gorm:"type:varchar(20);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:1" json:"provider"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:2" json:"provider_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	LastPaymentAt          *time.Time `gorm:"type:timestamp;default:null" json:"last_payment_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
