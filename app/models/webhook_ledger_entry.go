package models

import "time"

const (
	WebhookProviderMercadoPago = "mercadopago"
	WebhookProviderAsaas       = "asaas"
)

// LedgerStatusInFlight are the statuses of entries not yet finalized.
var LedgerStatusInFlight = []string{LedgerStatusReceived, LedgerStatusProcessing}

const (
	LedgerStatusReceived   = "RECEIVED"
	LedgerStatusProcessing = "PROCESSING"
	LedgerStatusProcessed  = "PROCESSED"
	LedgerStatusFailed     = "FAILED"
)

// WebhookLedgerEntry is one row per uniquely identified inbound provider event.
// The unique index on (provider, event_id) decides which concurrent delivery
// wins admission.
type WebhookLedgerEntry struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_ledger_provider_event,unique,priority:1;index:idx_webhook_ledger_provider_created,priority:1" json:"provider"`
	EventID         string     `gorm:"type:varchar(191);not null;index:ux_webhook_ledger_provider_event,unique,priority:2" json:"event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;default:''" json:"event_type"`
	Status          string     `gorm:"type:varchar(16);not null;default:'RECEIVED';index;index:idx_webhook_ledger_status_updated,priority:1" json:"status"`
	Attempts        int        `gorm:"not null;default:0" json:"attempts"`
	Error           *string    `gorm:"type:text" json:"error,omitempty"`
	NonRetryable    bool       `gorm:"not null;default:false" json:"non_retryable"`
	PayloadSnapshot string     `gorm:"type:longtext;not null" json:"payload_snapshot"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index:idx_webhook_ledger_provider_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime;index:idx_webhook_ledger_status_updated,priority:2" json:"updated_at"`
}

// LastError returns the recorded failure reason or an empty string.
func (e *WebhookLedgerEntry) LastError() string {
	if e.Error == nil {
		return ""
	}
	return *e.Error
}
