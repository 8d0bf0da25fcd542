package models

import "time"

const (
	OrderStatusPending       = "pending"
	OrderStatusPaid          = "paid"
	OrderStatusPaymentFailed = "payment_failed"
	OrderStatusRefunded      = "refunded"
	OrderStatusCancelled     = "cancelled"
)

// Order is owned by the surrounding business domain. The webhook pipeline
// only updates its payment-related status through the outcome applier.
type Order struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Status    string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	PaidAt    *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
