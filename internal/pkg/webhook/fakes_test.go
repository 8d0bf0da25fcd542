package webhook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ManuelReschke/PayHook/app/models"
	"gorm.io/gorm"
)

// memoryLedger enforces (provider, event_id) uniqueness the way the unique
// index does, and fails on a done context the way database/sql does.
type memoryLedger struct {
	mu     sync.Mutex
	nextID uint
	byKey  map[string]*models.WebhookLedgerEntry
	byID   map[uint]*models.WebhookLedgerEntry
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		byKey: make(map[string]*models.WebhookLedgerEntry),
		byID:  make(map[uint]*models.WebhookLedgerEntry),
	}
}

func (l *memoryLedger) Admit(ctx context.Context, entry *models.WebhookLedgerEntry) (bool, *models.WebhookLedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := entry.Provider + "|" + entry.EventID
	if existing, ok := l.byKey[key]; ok {
		stored := *existing
		return false, &stored, nil
	}
	l.nextID++
	row := *entry
	row.ID = l.nextID
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	l.byKey[key] = &row
	l.byID[row.ID] = &row
	stored := row
	return true, &stored, nil
}

func (l *memoryLedger) MarkProcessing(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if row, ok := l.byID[id]; ok && row.Status != models.LedgerStatusProcessed {
		row.Status = models.LedgerStatusProcessing
		row.UpdatedAt = time.Now()
	}
	return nil
}

func (l *memoryLedger) Finalize(ctx context.Context, id uint, f Finalization) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	row.Status = f.Status
	row.Attempts += f.Attempts
	row.NonRetryable = f.NonRetryable
	row.ProcessedAt = &now
	row.UpdatedAt = now
	if f.Error != "" {
		msg := f.Error
		row.Error = &msg
	} else {
		row.Error = nil
	}
	return nil
}

func (l *memoryLedger) Get(ctx context.Context, id uint) (*models.WebhookLedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	stored := *row
	return &stored, nil
}

func (l *memoryLedger) CountByStatus(_ context.Context, provider string, since time.Time) ([]StatusCount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	buckets := map[[2]string]int64{}
	for _, row := range l.byID {
		if row.CreatedAt.Before(since) || (provider != "" && row.Provider != provider) {
			continue
		}
		buckets[[2]string{row.Provider, row.Status}]++
	}
	out := make([]StatusCount, 0, len(buckets))
	for k, n := range buckets {
		out = append(out, StatusCount{Provider: k[0], Status: k[1], Count: n})
	}
	return out, nil
}

func (l *memoryLedger) ListFailed(_ context.Context, provider string, limit int) ([]models.WebhookLedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.WebhookLedgerEntry
	for id := l.nextID; id > 0 && len(out) < limit; id-- {
		row, ok := l.byID[id]
		if !ok || row.Status != models.LedgerStatusFailed || (provider != "" && row.Provider != provider) {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (l *memoryLedger) stale(provider string, before time.Time) []models.WebhookLedgerEntry {
	var out []models.WebhookLedgerEntry
	for id := uint(1); id <= l.nextID; id++ {
		row, ok := l.byID[id]
		if !ok || row.Status == models.LedgerStatusProcessed || row.Status == models.LedgerStatusFailed {
			continue
		}
		if !row.UpdatedAt.Before(before) || (provider != "" && row.Provider != provider) {
			continue
		}
		out = append(out, *row)
	}
	return out
}

func (l *memoryLedger) ListStale(_ context.Context, provider string, before time.Time, limit int) ([]models.WebhookLedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.stale(provider, before)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memoryLedger) CountStale(_ context.Context, provider string, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.stale(provider, before))), nil
}

func (l *memoryLedger) rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byID)
}

func (l *memoryLedger) entry(id uint) models.WebhookLedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.byID[id]
}

// add inserts a row directly, for monitor scenarios.
func (l *memoryLedger) add(provider, status string, createdAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	row := &models.WebhookLedgerEntry{
		ID:        l.nextID,
		Provider:  provider,
		EventID:   provider + "-" + strconv.Itoa(int(l.nextID)),
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	l.byKey[row.Provider+"|"+row.EventID] = row
	l.byID[row.ID] = row
}

// scriptedProcessor returns errs in order, then the outcome.
type scriptedProcessor struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	outcome Outcome
	events  []*Event
}

func (p *scriptedProcessor) Process(_ context.Context, ev *Event) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.events = append(p.events, ev)
	if p.calls <= len(p.errs) {
		return Outcome{}, p.errs[p.calls-1]
	}
	out := p.outcome
	out.PaymentID = ev.PaymentID
	return out, nil
}

func (p *scriptedProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// alwaysFailing is a processor whose store is permanently unavailable.
type alwaysFailing struct {
	mu    sync.Mutex
	calls int
}

var errStoreDown = errors.New("database is closed")

func (p *alwaysFailing) Process(context.Context, *Event) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return Outcome{}, errStoreDown
}

// blockingProcessor waits for the request deadline, like a lock wait that
// never returns.
type blockingProcessor struct {
	mu    sync.Mutex
	calls int
}

func (p *blockingProcessor) Process(ctx context.Context, _ *Event) (Outcome, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	<-ctx.Done()
	return Outcome{}, fmt.Errorf("lock payment: %w", ctx.Err())
}

type brokenLimiter struct{}

func (brokenLimiter) IncrementAndCheck(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}
