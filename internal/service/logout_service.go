package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/config"
	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/events"
	"github.com/spec-kit/session-gate/internal/observability"
	"github.com/spec-kit/session-gate/internal/session"
)

// LogoutService tears sessions down at the scoped or the full level.
type LogoutService struct {
	app            string
	loginURL       string
	sharedLoginURL string
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	metrics        *observability.Metrics
}

// LogoutDependencies encapsulates collaborators for the logout service.
type LogoutDependencies struct {
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewLogoutService builds the service.
func NewLogoutService(cfg config.Config, deps LogoutDependencies) *LogoutService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogoutService{
		app:            cfg.App.Name,
		loginURL:       cfg.Auth.LoginURL,
		sharedLoginURL: cfg.Auth.SharedLoginURL,
		dispatcher:     deps.Dispatcher,
		logger:         logger,
		metrics:        deps.Metrics,
	}
}

// ScopedLogout clears this application's own slots and leaves the shared
// session in place for the sibling application.
func (s *LogoutService) ScopedLogout(ctx context.Context, store session.Slots, nav domain.Navigator) error {
	if err := store.ClearScoped(ctx); err != nil {
		return fmt.Errorf("scoped logout: %w", err)
	}
	s.publish(ctx, store, events.ClearScopeScoped, "user signed out of "+s.app)
	s.metrics.RecordLogout(string(events.ClearScopeScoped))
	nav.Redirect(s.loginURL)
	return nil
}

// FullLogout clears scoped and shared slots, ending the session for both
// applications, and sends the browser to the shared login entry point unless
// it is already there.
func (s *LogoutService) FullLogout(ctx context.Context, store session.Slots, nav domain.Navigator) error {
	if err := s.teardown(ctx, store, "user signed out of platform"); err != nil {
		return err
	}
	s.RedirectToSharedLogin(nav)
	return nil
}

// EndSession is the teardown half of FullLogout, run once when a credential
// failure cannot be recovered. Callers redirect with RedirectToSharedLogin.
func (s *LogoutService) EndSession(ctx context.Context, store session.Slots, cause error) error {
	s.logger.Warn("ending session", zap.Error(cause))
	return s.teardown(ctx, store, cause.Error())
}

// RedirectToSharedLogin sends nav to the shared login entry point unless it
// already shows it.
func (s *LogoutService) RedirectToSharedLogin(nav domain.Navigator) {
	if !sameView(nav.CurrentView(), s.sharedLoginURL) {
		nav.Redirect(s.sharedLoginURL)
	}
}

func (s *LogoutService) teardown(ctx context.Context, store session.Slots, reason string) error {
	if err := store.ClearScoped(ctx); err != nil {
		return fmt.Errorf("full logout: %w", err)
	}
	if err := store.ClearShared(ctx); err != nil {
		return fmt.Errorf("full logout: %w", err)
	}
	s.publish(ctx, store, events.ClearScopeFull, reason)
	s.metrics.RecordLogout(string(events.ClearScopeFull))
	return nil
}

func (s *LogoutService) publish(ctx context.Context, store session.Slots, scope events.ClearScope, reason string) {
	if s.dispatcher == nil {
		return
	}
	browserID := ""
	if owned, ok := store.(interface{ BrowserID() string }); ok {
		browserID = owned.BrowserID()
	}
	event := events.NewEvent(events.EventSessionCleared, browserID, s.app, events.SessionClearedPayload{Scope: scope, Reason: reason})
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("session cleared handler failed", zap.Error(err))
	}
}

// sameView compares paths. An absolute target only matches a current view on
// the same host.
func sameView(current, target string) bool {
	if current == target {
		return true
	}
	cur, err := url.Parse(current)
	if err != nil {
		return false
	}
	tgt, err := url.Parse(target)
	if err != nil {
		return false
	}
	if tgt.Host != "" && !strings.EqualFold(cur.Host, tgt.Host) {
		return false
	}
	return cur.Path != "" && cur.Path == tgt.Path
}
