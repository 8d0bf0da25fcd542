package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuelReschke/PayHook/app/models"
	"github.com/ManuelReschke/PayHook/internal/pkg/webhook"
	"gorm.io/gorm"
)

// Applier moves linked orders and subscriptions when a payment changes. It
// implements webhook.OutcomeApplier.
type Applier struct {
	// newRepo binds a repository to the engine transaction.
	newRepo func(tx *gorm.DB) Repository
}

var _ webhook.OutcomeApplier = (*Applier)(nil)

// NewApplier creates the default outcome applier.
func NewApplier() *Applier {
	return &Applier{newRepo: NewRepository}
}

// ApplyPaymentOutcome runs inside the engine transaction, which already
// carries the request context.
func (a *Applier) ApplyPaymentOutcome(_ context.Context, tx *gorm.DB, outcome webhook.PaymentOutcome) error {
	repo := a.newRepo(tx)

	if ref := strings.TrimSpace(outcome.OrderRef); ref != "" {
		if err := applyOrder(repo, ref, outcome); err != nil {
			return err
		}
	}
	if ref := strings.TrimSpace(outcome.SubscriptionRef); ref != "" {
		if err := applySubscription(repo, ref, outcome); err != nil {
			return err
		}
	}
	return nil
}

func applyOrder(repo Repository, ref string, outcome webhook.PaymentOutcome) error {
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("%w: invalid order reference %q", webhook.ErrBusinessRuleViolation, ref)
	}

	order, err := repo.LockOrder(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order %d not found", webhook.ErrBusinessRuleViolation, id)
		}
		return err
	}

	status, ok := PaymentStatusToOrderStatus(outcome.Status)
	if !ok || order.Status == status {
		return nil
	}
	updates := map[string]interface{}{"status": status}
	if status == models.OrderStatusPaid && order.PaidAt == nil {
		updates["paid_at"] = paidAt(outcome)
	}
	return repo.UpdateOrder(order.ID, updates)
}

func applySubscription(repo Repository, ref string, outcome webhook.PaymentOutcome) error {
	sub, err := repo.LockSubscription(outcome.Provider, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: subscription %s/%s not found", webhook.ErrBusinessRuleViolation, outcome.Provider, ref)
		}
		return err
	}

	status, ok := PaymentStatusToSubscriptionStatus(outcome.Status)
	if !ok {
		return nil
	}
	updates := map[string]interface{}{"status": status}
	if outcome.Status == models.PaymentStatusPaid {
		updates["last_payment_at"] = paidAt(outcome)
	}
	return repo.UpdateSubscription(sub.ID, updates)
}

func paidAt(outcome webhook.PaymentOutcome) interface{} {
	if outcome.PaidAt != nil {
		return *outcome.PaidAt
	}
	return outcome.OccurredAt
}
