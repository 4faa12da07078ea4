package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/session"
	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

const (
	browserKey = "browser_id"
	sessionKey = "auth_session"
)

// BrowserIdentity loads the browser id cookie shared by both applications,
// issuing a fresh one when absent.
func BrowserIdentity(cookieName string, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(cookieName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     cookieName,
				Value:    id,
				Path:     "/",
				HTTPOnly: true,
				Secure:   secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		c.Locals(browserKey, id)
		return c.Next()
	}
}

// BrowserIDFromContext returns the id set by BrowserIdentity.
func BrowserIDFromContext(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(browserKey).(string)
	return id, ok && id != ""
}

// GuardMiddleware gates protected views with a Guard.
type GuardMiddleware struct {
	guard  *Guard
	stores *session.Factory
}

// NewGuardMiddleware constructs middleware.
func NewGuardMiddleware(guard *Guard, stores *session.Factory) *GuardMiddleware {
	return &GuardMiddleware{guard: guard, stores: stores}
}

// Handle lets Authenticated sessions through and redirects everything else.
func (m *GuardMiddleware) Handle(c *fiber.Ctx) error {
	browserID, ok := BrowserIDFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing browser identity")
	}

	sess, err := m.guard.Evaluate(c.UserContext(), m.stores.For(browserID))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Locals(sessionKey, sess)

	if target := m.guard.Destination(sess.Status); target != "" {
		return c.Redirect(target, fiber.StatusFound)
	}
	return c.Next()
}

// SessionFromContext retrieves the guard's projection.
func SessionFromContext(c *fiber.Ctx) (domain.Session, bool) {
	sess, ok := c.Locals(sessionKey).(domain.Session)
	return sess, ok
}
