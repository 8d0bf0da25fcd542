package billing

import (
	"github.com/ManuelReschke/PayHook/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the order and subscription operations used by the
// applier. It is bound to the engine transaction.
type Repository interface {
	LockOrder(id uint) (*models.Order, error)
	UpdateOrder(id uint, updates map[string]interface{}) error
	LockSubscription(provider, providerSubscriptionID string) (*models.BillingSubscription, error)
	UpdateSubscription(id uint, updates map[string]interface{}) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) LockOrder(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) UpdateOrder(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) LockSubscription(provider, providerSubscriptionID string) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND provider_subscription_id = ?", provider, providerSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpdateSubscription(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.BillingSubscription{}).Where("id = ?", id).Updates(updates).Error
}
