package webhook

import (
	"context"
	"time"

	"github.com/ManuelReschke/PayHook/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Finalization is the terminal ledger update for an admitted event.
type Finalization struct {
	Status       string
	Error        string
	Attempts     int
	NonRetryable bool
}

// StatusCount is one (provider, status) bucket of ledger rows.
type StatusCount struct {
	Provider string
	Status   string
	Count    int64
}

// Ledger is the write side of the webhook ledger used on the hot path.
type Ledger interface {
	// Admit inserts a RECEIVED entry unless (provider, event_id) exists. It
	// returns true only for the single winning insert, together with the
	// stored row.
	Admit(ctx context.Context, entry *models.WebhookLedgerEntry) (bool, *models.WebhookLedgerEntry, error)
	MarkProcessing(ctx context.Context, id uint) error
	Finalize(ctx context.Context, id uint, f Finalization) error
	Get(ctx context.Context, id uint) (*models.WebhookLedgerEntry, error)
}

// LedgerReader is the read-only view used by the monitor.
type LedgerReader interface {
	CountByStatus(ctx context.Context, provider string, since time.Time) ([]StatusCount, error)
	ListFailed(ctx context.Context, provider string, limit int) ([]models.WebhookLedgerEntry, error)
	// ListStale and CountStale see RECEIVED or PROCESSING entries last touched
	// before the given time.
	ListStale(ctx context.Context, provider string, before time.Time, limit int) ([]models.WebhookLedgerEntry, error)
	CountStale(ctx context.Context, provider string, before time.Time) (int64, error)
}

// Repository is the GORM-backed ledger. It implements Ledger and LedgerReader.
type Repository struct {
	db *gorm.DB
}

var (
	_ Ledger       = (*Repository)(nil)
	_ LedgerReader = (*Repository)(nil)
)

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Admit(ctx context.Context, entry *models.WebhookLedgerEntry) (bool, *models.WebhookLedgerEntry, error) {
	if entry.Status == "" {
		entry.Status = models.LedgerStatusReceived
	}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(entry)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	admitted := tx.RowsAffected > 0
	var stored models.WebhookLedgerEntry
	if err := r.db.WithContext(ctx).Where("provider = ? AND event_id = ?", entry.Provider, entry.EventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return admitted, &stored, nil
}

func (r *Repository) MarkProcessing(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.WebhookLedgerEntry{}).
		Where("id = ? AND status <> ?", id, models.LedgerStatusProcessed).
		Update("status", models.LedgerStatusProcessing).Error
}

func (r *Repository) Finalize(ctx context.Context, id uint, f Finalization) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":        f.Status,
		"processed_at":  &now,
		"attempts":      gorm.Expr("attempts + ?", f.Attempts),
		"non_retryable": f.NonRetryable,
	}
	if f.Error != "" {
		updates["error"] = f.Error
	} else {
		updates["error"] = gorm.Expr("NULL")
	}
	return r.db.WithContext(ctx).Model(&models.WebhookLedgerEntry{}).Where("id = ?", id).Updates(updates).Error
}

func (r *Repository) Get(ctx context.Context, id uint) (*models.WebhookLedgerEntry, error) {
	var entry models.WebhookLedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *Repository) CountByStatus(ctx context.Context, provider string, since time.Time) ([]StatusCount, error) {
	q := r.db.WithContext(ctx).Model(&models.WebhookLedgerEntry{}).
		Select("provider, status, COUNT(*) AS count").
		Where("created_at >= ?", since)
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}

	var rows []StatusCount
	err := q.Group("provider, status").Scan(&rows).Error
	return rows, err
}

func (r *Repository) ListFailed(ctx context.Context, provider string, limit int) ([]models.WebhookLedgerEntry, error) {
	q := r.db.WithContext(ctx).Where("status = ?", models.LedgerStatusFailed)
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}

	var entries []models.WebhookLedgerEntry
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

func (r *Repository) ListStale(ctx context.Context, provider string, before time.Time, limit int) ([]models.WebhookLedgerEntry, error) {
	var entries []models.WebhookLedgerEntry
	err := r.staleQuery(ctx, provider, before).Order("updated_at ASC, id ASC").Limit(limit).Find(&entries).Error
	return entries, err
}

func (r *Repository) CountStale(ctx context.Context, provider string, before time.Time) (int64, error) {
	var n int64
	err := r.staleQuery(ctx, provider, before).Count(&n).Error
	return n, err
}

func (r *Repository) staleQuery(ctx context.Context, provider string, before time.Time) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.WebhookLedgerEntry{}).
		Where("status IN ? AND updated_at < ?", models.LedgerStatusInFlight, before)
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}
	return q
}
