package router

import (
	"github.com/ManuelReschke/PayHook/internal/pkg/metrics"
	"github.com/ManuelReschke/PayHook/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsRouter struct {
	deps Dependencies
}

func NewMetricsRouter(deps Dependencies) *MetricsRouter {
	return &MetricsRouter{deps: deps}
}

func (m MetricsRouter) InstallRouter(app *fiber.App) {
	metrics.RegisterMetrics()
	app.Get("/metrics",
		middleware.MonitorAuth(m.deps.MonitorUser, m.deps.MonitorPasswordHash),
		adaptor.HTTPHandler(promhttp.Handler()),
	)
}
