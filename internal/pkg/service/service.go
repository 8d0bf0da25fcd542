package service

import (
	"fmt"

	"github.com/ManuelReschke/PayHook/internal/pkg/billing"
	"github.com/ManuelReschke/PayHook/internal/pkg/cache"
	"github.com/ManuelReschke/PayHook/internal/pkg/database"
	"github.com/ManuelReschke/PayHook/internal/pkg/events"
	"github.com/ManuelReschke/PayHook/internal/pkg/ratelimit"
	"github.com/ManuelReschke/PayHook/internal/pkg/webhook"
)

// Services is the wired webhook stack shared by the server and the CLIs.
type Services struct {
	Config    webhook.Config
	Ledger    *webhook.Repository
	Pipeline  *webhook.Pipeline
	Monitor   *webhook.Monitor
	Publisher events.Publisher
}

// Setup connects to MySQL and Redis and builds the pipeline. The env file must
// already be loaded.
func Setup() (*Services, error) {
	cfg, err := webhook.LoadConfig()
	if err != nil {
		return nil, err
	}

	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repo := webhook.NewRepository(db)
	publisher := events.NewPublisherFromEnv()
	engine := webhook.NewEngine(db, billing.NewApplier(), publisher)

	pipeline, err := webhook.NewPipeline(webhook.Dependencies{
		Config:    cfg,
		Limiter:   ratelimit.NewRedisLimiter(cache.GetClient()),
		Ledger:    repo,
		Processor: engine,
	})
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("build webhook pipeline: %w", err)
	}

	return &Services{
		Config:    cfg,
		Ledger:    repo,
		Pipeline:  pipeline,
		Monitor:   webhook.NewMonitor(repo),
		Publisher: publisher,
	}, nil
}

// Close releases connections owned by the services.
func (s *Services) Close() error {
	return s.Publisher.Close()
}
