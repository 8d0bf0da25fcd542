package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router registers a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers every route group. Monitor routes come before the
// provider routes so "monitor" is never taken for a provider name.
func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewMetricsRouter(deps), NewWebhookRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
