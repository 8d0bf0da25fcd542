package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/PayHook/app/models"
	"github.com/ManuelReschke/PayHook/internal/pkg/metrics"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentOutcome describes an applied payment change for collaborators.
type PaymentOutcome struct {
	Provider        string     `json:"provider"`
	PaymentID       string     `json:"paymentId"`
	EventID         string     `json:"eventId"`
	EventType       string     `json:"eventType"`
	PreviousStatus  string     `json:"previousStatus"`
	Status          string     `json:"status"`
	Amount          float64    `json:"amount"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
	OrderRef        string     `json:"orderRef,omitempty"`
	SubscriptionRef string     `json:"subscriptionRef,omitempty"`
	OccurredAt      time.Time  `json:"occurredAt"`
}

// OutcomeApplier propagates a payment change to orders, subscriptions or
// other records. It runs inside the engine transaction; returning an error
// wrapping ErrBusinessRuleViolation rolls back without a retry.
type OutcomeApplier interface {
	ApplyPaymentOutcome(ctx context.Context, tx *gorm.DB, outcome PaymentOutcome) error
}

// OutcomePublisher is notified after a payment change committed.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome PaymentOutcome) error
}

// Processor applies one verified event. Business-rule violations are reported
// in Outcome.Violation; a returned error is transient.
type Processor interface {
	Process(ctx context.Context, ev *Event) (Outcome, error)
}

// Engine is the payment-state transition engine backed by GORM.
type Engine struct {
	db        *gorm.DB
	applier   OutcomeApplier
	publisher OutcomePublisher
	now       func() time.Time
}

var _ Processor = (*Engine)(nil)

// NewEngine creates an engine. applier and publisher may be nil.
func NewEngine(db *gorm.DB, applier OutcomeApplier, publisher OutcomePublisher) *Engine {
	return &Engine{
		db:        db,
		applier:   applier,
		publisher: publisher,
		now:       time.Now,
	}
}

func (e *Engine) Process(ctx context.Context, ev *Event) (Outcome, error) {
	out := Outcome{PaymentID: ev.PaymentID}

	target, err := CanonicalStatus(ev)
	if err != nil {
		if errors.Is(err, ErrBusinessRuleViolation) {
			out.Violation = err
			return out, nil
		}
		return out, err
	}

	var applied PaymentOutcome
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, created, err := lockOrCreatePayment(tx, ev)
		if err != nil {
			return err
		}
		out.Created = created
		out.PreviousStatus = payment.Status
		out.Status = payment.Status

		changed, err := CheckTransition(payment.Status, target)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		now := e.now()
		updates := map[string]interface{}{
			"status":        target,
			"last_event_id": ev.ID,
		}
		if ev.Amount > 0 {
			updates["amount"] = ev.Amount
		}
		if target == models.PaymentStatusPaid && payment.PaidAt == nil {
			paidAt := now
			if ev.PaidAt != nil {
				paidAt = *ev.PaidAt
			}
			updates["paid_at"] = &paidAt
			applied.PaidAt = &paidAt
		}
		if payment.OrderRef == "" && ev.OrderRef != "" {
			updates["order_ref"] = ev.OrderRef
			payment.OrderRef = ev.OrderRef
		}
		if payment.SubscriptionRef == "" && ev.SubscriptionRef != "" {
			updates["subscription_ref"] = ev.SubscriptionRef
			payment.SubscriptionRef = ev.SubscriptionRef
		}
		if err := tx.Model(&models.PaymentTransaction{}).Where("id = ?", payment.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update payment transaction: %w", err)
		}

		out.Status = target
		out.Changed = true
		applied = PaymentOutcome{
			Provider:        payment.Provider,
			PaymentID:       payment.ProviderPaymentID,
			EventID:         ev.ID,
			EventType:       ev.Type,
			PreviousStatus:  out.PreviousStatus,
			Status:          target,
			Amount:          ev.Amount,
			PaidAt:          applied.PaidAt,
			OrderRef:        payment.OrderRef,
			SubscriptionRef: payment.SubscriptionRef,
			OccurredAt:      now,
		}
		if e.applier == nil {
			return nil
		}
		return e.applier.ApplyPaymentOutcome(ctx, tx, applied)
	})
	if err != nil {
		if errors.Is(err, ErrBusinessRuleViolation) {
			return Outcome{PaymentID: ev.PaymentID, Violation: err}, nil
		}
		return Outcome{PaymentID: ev.PaymentID}, err
	}

	if out.Changed {
		metrics.PaymentTransitions.WithLabelValues(string(ev.Provider), out.PreviousStatus, out.Status).Inc()
		e.publish(ctx, applied)
	}
	return out, nil
}

func (e *Engine) publish(ctx context.Context, outcome PaymentOutcome) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishOutcome(ctx, outcome); err != nil {
		metrics.OutcomePublishFailures.Inc()
		log.Errorf("[Engine] Failed to publish outcome for %s payment %s: %v", outcome.Provider, outcome.PaymentID, err)
	}
}

// lockOrCreatePayment returns the payment row locked for update, creating it
// as PENDING first when it does not exist yet.
func lockOrCreatePayment(tx *gorm.DB, ev *Event) (*models.PaymentTransaction, bool, error) {
	provider := string(ev.Provider)
	payment, err := selectPaymentForUpdate(tx, provider, ev.PaymentID)
	if err == nil {
		return payment, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("lock payment transaction: %w", err)
	}

	row := &models.PaymentTransaction{
		Provider:          provider,
		ProviderPaymentID: ev.PaymentID,
		Status:            models.PaymentStatusPending,
		Amount:            ev.Amount,
		OrderRef:          ev.OrderRef,
		SubscriptionRef:   ev.SubscriptionRef,
	}
	// A concurrent delivery for the same payment may insert first.
	res := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_payment_id"},
		},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create payment transaction: %w", res.Error)
	}

	payment, err = selectPaymentForUpdate(tx, provider, ev.PaymentID)
	if err != nil {
		return nil, false, fmt.Errorf("lock payment transaction: %w", err)
	}
	return payment, res.RowsAffected > 0, nil
}

func selectPaymentForUpdate(tx *gorm.DB, provider, paymentID string) (*models.PaymentTransaction, error) {
	var payment models.PaymentTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND provider_payment_id = ?", provider, paymentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
