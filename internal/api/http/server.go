package http

import (
	"context"
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/api/http/handlers"
	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/config"
	"github.com/spec-kit/session-gate/internal/events"
	"github.com/spec-kit/session-gate/internal/observability"
	"github.com/spec-kit/session-gate/internal/pipeline"
	"github.com/spec-kit/session-gate/internal/service"
	"github.com/spec-kit/session-gate/internal/session"
)

// ServerDependencies are the process-level collaborators of one application.
type ServerDependencies struct {
	// Lifetime is cancelled when the process begins shutting down; long-lived
	// responses end with it.
	Lifetime   context.Context
	Backend    session.Backend
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	HTTPClient *nethttp.Client
}

// NewServer wires the session gate for cfg.App.Name into a fiber app.
func NewServer(cfg config.Config, deps ServerDependencies) *fiber.App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var metrics *observability.Metrics
	var gatherer prometheus.Gatherer
	if deps.Registry != nil {
		metrics = observability.NewMetrics(deps.Registry, cfg.App.Name)
		gatherer = deps.Registry
	}
	client := deps.HTTPClient
	if client == nil {
		client = &nethttp.Client{Timeout: cfg.API.Timeout()}
	}

	stores := session.NewFactory(deps.Backend, session.NewLayout(cfg.Slots), cfg.Store.KeyPrefix, cfg.App.Name, deps.Dispatcher)
	guard := auth.NewGuard(
		auth.NewPolicy(cfg.Auth.RequiredRoles...),
		auth.Destinations{Login: cfg.Auth.LoginURL, AccessDenied: cfg.Auth.AccessDeniedURL},
		logger.Named("guard"),
		auth.WithMetrics(metrics),
	)
	logout := service.NewLogoutService(cfg, service.LogoutDependencies{
		Dispatcher: deps.Dispatcher,
		Logger:     logger.Named("logout"),
		Metrics:    metrics,
	})
	requests := pipeline.New(client, pipeline.NewHTTPRenewer(client, cfg.API.RenewalURL), logout, logger.Named("pipeline"), metrics)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	RegisterRoutes(app, RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps.Backend),
		Session:         handlers.NewSessionHandler(deps.Lifetime, guard, stores, deps.Dispatcher, cfg.Auth.SiblingURL, logger.Named("session")),
		Logout:          handlers.NewLogoutHandler(logout, stores),
		Proxy:           handlers.NewProxyHandler(requests, stores, cfg.API.BaseURL),
		Guard:           auth.NewGuardMiddleware(guard, stores),
		BrowserIdentity: auth.BrowserIdentity(cfg.Auth.CookieName, cfg.Auth.CookieSecure),
		Gatherer:        gatherer,
	})
	return app
}
