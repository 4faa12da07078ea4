package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/service"
	"github.com/spec-kit/session-gate/internal/session"
	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

// LogoutHandler exposes scoped and full logout.
type LogoutHandler struct {
	logout *service.LogoutService
	stores *session.Factory
}

// NewLogoutHandler constructs handler.
func NewLogoutHandler(logout *service.LogoutService, stores *session.Factory) *LogoutHandler {
	return &LogoutHandler{logout: logout, stores: stores}
}

// Scoped handles POST /logout.
func (h *LogoutHandler) Scoped(c *fiber.Ctx) error {
	browserID, ok := auth.BrowserIDFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing browser identity")
	}
	nav := newRequestNavigator(c)
	if err := h.logout.ScopedLogout(c.UserContext(), h.stores.For(browserID), nav); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nav.respond(c, fiber.Map{"scope": "scoped"})
}

// Full handles POST /logout/all.
func (h *LogoutHandler) Full(c *fiber.Ctx) error {
	browserID, ok := auth.BrowserIDFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing browser identity")
	}
	nav := newRequestNavigator(c)
	if err := h.logout.FullLogout(c.UserContext(), h.stores.For(browserID), nav); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nav.respond(c, fiber.Map{"scope": "full"})
}
