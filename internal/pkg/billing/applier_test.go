package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuelReschke/PayHook/app/models"
	"github.com/ManuelReschke/PayHook/internal/pkg/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	orders       map[uint]*models.Order
	subs         map[string]*models.BillingSubscription
	orderUpdates map[uint]map[string]interface{}
	subUpdates   map[uint]map[string]interface{}
	lockOrderErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:       map[uint]*models.Order{},
		subs:         map[string]*models.BillingSubscription{},
		orderUpdates: map[uint]map[string]interface{}{},
		subUpdates:   map[uint]map[string]interface{}{},
	}
}

func (r *fakeRepo) LockOrder(id uint) (*models.Order, error) {
	if r.lockOrderErr != nil {
		return nil, r.lockOrderErr
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (r *fakeRepo) UpdateOrder(id uint, updates map[string]interface{}) error {
	r.orderUpdates[id] = updates
	return nil
}

func (r *fakeRepo) LockSubscription(provider, id string) (*models.BillingSubscription, error) {
	s, ok := r.subs[provider+"/"+id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *fakeRepo) UpdateSubscription(id uint, updates map[string]interface{}) error {
	r.subUpdates[id] = updates
	return nil
}

func applierWith(repo Repository) *Applier {
	return &Applier{newRepo: func(*gorm.DB) Repository { return repo }}
}

func TestPaymentStatusToOrderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: models.PaymentStatusPending, want: models.OrderStatusPending},
		{in: models.PaymentStatusPaid, want: models.OrderStatusPaid},
		{in: models.PaymentStatusFailed, want: models.OrderStatusPaymentFailed},
		{in: models.PaymentStatusRefunded, want: models.OrderStatusRefunded},
		{in: models.PaymentStatusCancelled, want: models.OrderStatusCancelled},
	}

	for _, tt := range tests {
		if got, ok := PaymentStatusToOrderStatus(tt.in); !ok || got != tt.want {
			t.Fatalf("PaymentStatusToOrderStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, ok := PaymentStatusToOrderStatus("SOMETHING"); ok {
		t.Fatalf("expected unknown payment status to be rejected")
	}
}

func TestPaymentStatusToSubscriptionStatus(t *testing.T) {
	if got, _ := PaymentStatusToSubscriptionStatus(models.PaymentStatusPaid); got != models.BillingStatusActive {
		t.Fatalf("expected paid to activate, got %q", got)
	}
	if got, _ := PaymentStatusToSubscriptionStatus(models.PaymentStatusFailed); got != models.BillingStatusPastDue {
		t.Fatalf("expected failed to be past_due, got %q", got)
	}
	if got, _ := PaymentStatusToSubscriptionStatus(models.PaymentStatusRefunded); got != models.BillingStatusCanceled {
		t.Fatalf("expected refunded to cancel, got %q", got)
	}
	if _, ok := PaymentStatusToSubscriptionStatus(models.PaymentStatusPending); ok {
		t.Fatalf("expected pending to leave subscriptions alone")
	}
}

func TestApplier_PaidOrder(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[7] = &models.Order{ID: 7, Status: models.OrderStatusPending}
	paid := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	err := applierWith(repo).ApplyPaymentOutcome(context.Background(), nil, webhook.PaymentOutcome{
		Provider: models.WebhookProviderAsaas,
		Status:   models.PaymentStatusPaid,
		OrderRef: "7",
		PaidAt:   &paid,
	})

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, repo.orderUpdates[7]["status"])
	assert.Equal(t, paid, repo.orderUpdates[7]["paid_at"])
}

func TestApplier_OrderAlreadyInStatus(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[7] = &models.Order{ID: 7, Status: models.OrderStatusRefunded}

	err := applierWith(repo).ApplyPaymentOutcome(context.Background(), nil, webhook.PaymentOutcome{
		Status:   models.PaymentStatusRefunded,
		OrderRef: "7",
	})

	require.NoError(t, err)
	assert.Empty(t, repo.orderUpdates)
}

func TestApplier_UnresolvableOrderIsViolation(t *testing.T) {
	repo := newFakeRepo()
	a := applierWith(repo)

	err := a.ApplyPaymentOutcome(context.Background(), nil, webhook.PaymentOutcome{Status: models.PaymentStatusPaid, OrderRef: "99"})
	assert.ErrorIs(t, err, webhook.ErrBusinessRuleViolation)

	err = a.ApplyPaymentOutcome(context.Background(), nil, webhook.PaymentOutcome{Status: models.PaymentStatusPaid, OrderRef: "order-abc"})
	assert.ErrorIs(t, err, webhook.ErrBusinessRuleViolation)
}

func TestApplier_StoreErrorIsTransient(t *testing.T) {
	repo := newFakeRepo()
	repo.lockOrderErr = errors.New("lock wait timeout exceeded")

	err := applierWith(repo).ApplyPaymentOutcome(context.Background(), nil, webhook.PaymentOutcome{Status: models.PaymentStatusPaid, OrderRef: "1"})
	require.Error(t, err)
	assert.True(t, webhook.IsRetryable(err))
}

func TestApplier_Subscription(t *testing.T) {
	repo := newFakeRepo()
	repo.subs["mercadopago/pre_1"] = &models.BillingSubscription{ID: 3, Provider: "mercadopago", ProviderSubscriptionID: "pre_1"}
	occurred := time.Now()

	err := applierWith(repo).ApplyPaymentOutcome(context.Background(), nil, webhook.PaymentOutcome{
		Provider:        models.WebhookProviderMercadoPago,
		Status:          models.PaymentStatusPaid,
		SubscriptionRef: "pre_1",
		OccurredAt:      occurred,
	})

	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusActive, repo.subUpdates[3]["status"])
	assert.Equal(t, occurred, repo.subUpdates[3]["last_payment_at"])

	err = applierWith(repo).ApplyPaymentOutcome(context.Background(), nil, webhook.PaymentOutcome{
		Provider:        models.WebhookProviderMercadoPago,
		Status:          models.PaymentStatusPaid,
		SubscriptionRef: "pre_missing",
	})
	assert.ErrorIs(t, err, webhook.ErrBusinessRuleViolation)
}

func TestApplier_NoReferences(t *testing.T) {
	repo := newFakeRepo()
	err := applierWith(repo).ApplyPaymentOutcome(context.Background(), nil, webhook.PaymentOutcome{Status: models.PaymentStatusPaid})
	require.NoError(t, err)
	assert.Empty(t, repo.orderUpdates)
	assert.Empty(t, repo.subUpdates)
}
