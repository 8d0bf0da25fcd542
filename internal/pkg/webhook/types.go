package webhook

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/PayHook/app/models"
)

// Provider identifies a payment provider that pushes webhooks.
type Provider string

const (
	ProviderMercadoPago Provider = models.WebhookProviderMercadoPago
	ProviderAsaas       Provider = models.WebhookProviderAsaas
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderMercadoPago, ProviderAsaas}

// ParseProvider resolves a path segment such as "mercadopago" or "MercadoPago".
func ParseProvider(raw string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, raw)
}

// Delivery is one inbound webhook request as seen by the pipeline.
type Delivery struct {
	Provider  Provider
	Header    http.Header
	Query     url.Values
	RawBody   []byte
	ClientIP  string
	RequestID string
}

// Event is the provider-neutral view of a verified payload.
type Event struct {
	Provider        Provider
	Type            string
	PaymentID       string
	Status          string
	Amount          float64
	PaidAt          *time.Time
	OrderRef        string
	SubscriptionRef string
	ID              string
}

// Outcome is what the transition engine did with an event.
type Outcome struct {
	PaymentID      string
	PreviousStatus string
	Status         string
	Changed        bool
	Created        bool
	// Violation is set for business-rule failures that must not be retried.
	Violation error
}

// Result is the standardized answer for a webhook delivery.
type Result struct {
	HTTPStatus     int
	Success        bool
	Message        string
	EventID        string
	EntryID        uint
	Attempts       int
	Duplicate      bool
	ProcessingTime time.Duration
	Err            error
}

// ProcessingTimeMs returns the processing time in whole milliseconds.
func (r *Result) ProcessingTimeMs() int64 {
	return r.ProcessingTime.Milliseconds()
}
