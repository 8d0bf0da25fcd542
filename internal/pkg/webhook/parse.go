package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// flexibleID accepts provider ids sent either as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type mercadoPagoPayload struct {
	Event   string `json:"event" validate:"required"`
	Payment struct {
		ID                flexibleID `json:"id" validate:"required"`
		Status            string     `json:"status"`
		TransactionAmount float64    `json:"transaction_amount"`
		ExternalReference string     `json:"external_reference"`
		PreapprovalID     string     `json:"preapproval_id"`
		DateApproved      *time.Time `json:"date_approved"`
	} `json:"payment"`
}

func parseMercadoPago(raw []byte) (*Event, error) {
	var p mercadoPagoPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: Invalid JSON payload", ErrValidation)
	}
	if err := validateStruct(&p); err != nil {
		return nil, err
	}
	return &Event{
		Provider:        ProviderMercadoPago,
		Type:            strings.TrimSpace(p.Event),
		PaymentID:       string(p.Payment.ID),
		Status:          strings.ToLower(strings.TrimSpace(p.Payment.Status)),
		Amount:          p.Payment.TransactionAmount,
		PaidAt:          p.Payment.DateApproved,
		OrderRef:        strings.TrimSpace(p.Payment.ExternalReference),
		SubscriptionRef: strings.TrimSpace(p.Payment.PreapprovalID),
	}, nil
}

// asaasDateLayout is the calendar-date format Asaas uses for payment dates.
const asaasDateLayout = "2006-01-02"

type asaasPayload struct {
	Event   string `json:"event" validate:"required"`
	Payment struct {
		ID                flexibleID `json:"id" validate:"required"`
		Status            string     `json:"status"`
		Value             float64    `json:"value"`
		ExternalReference string     `json:"externalReference"`
		Subscription      string     `json:"subscription"`
		PaymentDate       string     `json:"paymentDate"`
		ConfirmedDate     string     `json:"confirmedDate"`
	} `json:"payment"`
}

func parseAsaas(raw []byte) (*Event, error) {
	var p asaasPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: Invalid JSON payload", ErrValidation)
	}
	if err := validateStruct(&p); err != nil {
		return nil, err
	}

	var paidAt *time.Time
	for _, d := range []string{p.Payment.PaymentDate, p.Payment.ConfirmedDate} {
		if t, err := time.Parse(asaasDateLayout, strings.TrimSpace(d)); err == nil {
			paidAt = &t
			break
		}
	}

	return &Event{
		Provider:        ProviderAsaas,
		Type:            strings.ToUpper(strings.TrimSpace(p.Event)),
		PaymentID:       string(p.Payment.ID),
		Status:          strings.ToUpper(strings.TrimSpace(p.Payment.Status)),
		Amount:          p.Payment.Value,
		PaidAt:          paidAt,
		OrderRef:        strings.TrimSpace(p.Payment.ExternalReference),
		SubscriptionRef: strings.TrimSpace(p.Payment.Subscription),
	}, nil
}
