package webhook

import (
	"context"
	"math"
	"time"

	"github.com/ManuelReschke/PayHook/app/models"
)

const (
	DefaultStatsHours  = 24
	DefaultFailedLimit = 50
	MaxFailedLimit     = 500
	HealthWindow       = 5 * time.Minute
	HealthySuccessRate = 90.0
	// StaleAfter is how long an entry may stay RECEIVED or PROCESSING before
	// it is reported as stuck. It must exceed the request timeout.
	StaleAfter = 10 * time.Minute
)

// Statistics aggregates ledger rows over a time window.
type Statistics struct {
	Provider    string  `json:"provider,omitempty"`
	Hours       int     `json:"hours"`
	Total       int64   `json:"total"`
	Succeeded   int64   `json:"succeeded"`
	Failed      int64   `json:"failed"`
	InFlight    int64   `json:"inFlight"`
	SuccessRate float64 `json:"successRate"`
	// Stuck counts every stale entry, regardless of Hours.
	Stuck int64 `json:"stuck"`
}

// ProviderHealth is the health of one provider over HealthWindow.
type ProviderHealth struct {
	Healthy     bool    `json:"healthy"`
	Total       int64   `json:"total"`
	SuccessRate float64 `json:"successRate"`
}

// Health is the overall webhook health report.
type Health struct {
	Healthy     bool                      `json:"healthy"`
	PerProvider map[string]ProviderHealth `json:"perProvider"`
	CheckedAt   time.Time                 `json:"checkedAt"`
}

// FailedWebhook is the operator view of a FAILED or stuck ledger entry.
type FailedWebhook struct {
	ID           uint       `json:"id"`
	Provider     string     `json:"provider"`
	EventID      string     `json:"eventId"`
	EventType    string     `json:"eventType"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	Error        string     `json:"error"`
	NonRetryable bool       `json:"nonRetryable"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
}

// Monitor answers operator queries from the ledger. It never writes.
type Monitor struct {
	reader LedgerReader
	now    func() time.Time
}

func NewMonitor(reader LedgerReader) *Monitor {
	return &Monitor{reader: reader, now: time.Now}
}

// GetStatistics counts ledger rows created in the last hours, optionally for a
// single provider.
func (m *Monitor) GetStatistics(ctx context.Context, provider string, hours int) (Statistics, error) {
	if hours <= 0 {
		hours = DefaultStatsHours
	}
	since := m.now().Add(-time.Duration(hours) * time.Hour)
	rows, err := m.reader.CountByStatus(ctx, provider, since)
	if err != nil {
		return Statistics{}, err
	}

	stuck, err := m.reader.CountStale(ctx, provider, m.now().Add(-StaleAfter))
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{Provider: provider, Hours: hours, Stuck: stuck}
	for _, row := range rows {
		addCount(&stats, row)
	}
	stats.SuccessRate = roundRate(successRate(stats.Succeeded, stats.Total))
	return stats, nil
}

// GetFailedWebhooks lists the most recent FAILED entries.
func (m *Monitor) GetFailedWebhooks(ctx context.Context, provider string, limit int) ([]FailedWebhook, error) {
	entries, err := m.reader.ListFailed(ctx, provider, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return webhookViews(entries), nil
}

// GetStuckWebhooks lists entries left RECEIVED or PROCESSING for longer than
// StaleAfter, oldest first. Those are never redelivered and need a replay.
func (m *Monitor) GetStuckWebhooks(ctx context.Context, provider string, limit int) ([]FailedWebhook, error) {
	entries, err := m.reader.ListStale(ctx, provider, m.now().Add(-StaleAfter), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return webhookViews(entries), nil
}

// HealthCheck reports every provider healthy when its success rate over the
// last five minutes exceeds 90%, or when it received nothing.
func (m *Monitor) HealthCheck(ctx context.Context) (Health, error) {
	now := m.now()
	rows, err := m.reader.CountByStatus(ctx, "", now.Add(-HealthWindow))
	if err != nil {
		return Health{}, err
	}

	perProvider := make(map[string]*Statistics, len(Providers))
	for _, p := range Providers {
		perProvider[string(p)] = &Statistics{Provider: string(p)}
	}
	for _, row := range rows {
		stats, ok := perProvider[row.Provider]
		if !ok {
			stats = &Statistics{Provider: row.Provider}
			perProvider[row.Provider] = stats
		}
		addCount(stats, row)
	}

	health := Health{Healthy: true, PerProvider: make(map[string]ProviderHealth, len(perProvider)), CheckedAt: now}
	for name, stats := range perProvider {
		rate := successRate(stats.Succeeded, stats.Total)
		ph := ProviderHealth{
			Healthy:     stats.Total == 0 || rate > HealthySuccessRate,
			Total:       stats.Total,
			SuccessRate: roundRate(rate),
		}
		if !ph.Healthy {
			health.Healthy = false
		}
		health.PerProvider[name] = ph
	}
	return health, nil
}

func addCount(stats *Statistics, row StatusCount) {
	stats.Total += row.Count
	switch row.Status {
	case models.LedgerStatusProcessed:
		stats.Succeeded += row.Count
	case models.LedgerStatusFailed:
		stats.Failed += row.Count
	default:
		stats.InFlight += row.Count
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultFailedLimit
	}
	if limit > MaxFailedLimit {
		return MaxFailedLimit
	}
	return limit
}

func webhookViews(entries []models.WebhookLedgerEntry) []FailedWebhook {
	out := make([]FailedWebhook, 0, len(entries))
	for _, e := range entries {
		out = append(out, FailedWebhook{
			ID:           e.ID,
			Provider:     e.Provider,
			EventID:      e.EventID,
			EventType:    e.EventType,
			Status:       e.Status,
			Attempts:     e.Attempts,
			Error:        e.LastError(),
			NonRetryable: e.NonRetryable,
			CreatedAt:    e.CreatedAt,
			UpdatedAt:    e.UpdatedAt,
			ProcessedAt:  e.ProcessedAt,
		})
	}
	return out
}

// successRate is the unrounded success percentage.
func successRate(succeeded, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(succeeded) / float64(total) * 100
}

func roundRate(rate float64) float64 {
	return math.Round(rate*100) / 100
}
