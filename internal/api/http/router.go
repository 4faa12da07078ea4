package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/session-gate/internal/api/http/handlers"
	"github.com/spec-kit/session-gate/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Session         *handlers.SessionHandler
	Logout          *handlers.LogoutHandler
	Proxy           *handlers.ProxyHandler
	Guard           *auth.GuardMiddleware
	BrowserIdentity fiber.Handler
	Gatherer        prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	identity := cfg.BrowserIdentity
	app.Get("/session", identity, cfg.Session.Current)
	app.Get("/session/events", identity, cfg.Session.Events)
	app.Post("/logout", identity, cfg.Logout.Scoped)
	app.Post("/logout/all", identity, cfg.Logout.Full)
	app.All("/api/*", identity, cfg.Proxy.Forward)
	app.Get("/app/*", identity, cfg.Guard.Handle, cfg.Session.View)
}
