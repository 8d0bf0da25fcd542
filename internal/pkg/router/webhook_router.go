package router

import (
	"time"

	"github.com/ManuelReschke/PayHook/app/controllers"
	"github.com/ManuelReschke/PayHook/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
)

// Dependencies carries the services the routes are bound to.
type Dependencies struct {
	Pipeline controllers.WebhookHandler
	Monitor  controllers.MonitorService
	// MonitorStorage backs the monitor limiter; nil keeps it in memory.
	MonitorStorage fiber.Storage
	MonitorUser    string
	// MonitorPasswordHash is a bcrypt hash.
	MonitorPasswordHash string
	// WebhookTimeout bounds one delivery including retries.
	WebhookTimeout time.Duration
}

type WebhookRouter struct {
	deps Dependencies
}

func NewWebhookRouter(deps Dependencies) *WebhookRouter {
	return &WebhookRouter{deps: deps}
}

func (w WebhookRouter) InstallRouter(app *fiber.App) {
	webhooks := app.Group("/webhooks")

	monitor := controllers.NewMonitorController(w.deps.Monitor)
	guard := middleware.MonitorAuth(w.deps.MonitorUser, w.deps.MonitorPasswordHash)
	throttle := middleware.MonitorLimiter(w.deps.MonitorStorage)
	webhooks.Get("/monitor", guard, throttle, monitor.HandleMonitor)
	webhooks.Post("/monitor", guard, throttle, monitor.HandleMonitorAction)

	wh := controllers.NewWebhookController(w.deps.Pipeline, w.deps.WebhookTimeout)
	webhooks.Post("/:provider", wh.HandleWebhook)
	webhooks.Get("/:provider", wh.HandlePing)
}
