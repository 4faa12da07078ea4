package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/session-gate/internal/config"
	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/session"
)

const testBrowser = "6f1c2a1e-5d1b-4a59-9f0e-0c6b2d8d6a11"

func newGuardedApp(backend session.Backend) *fiber.App {
	factory := session.NewFactory(backend, session.NewLayout(config.DefaultSlots()), "gate:", "admin", nil)
	mw := NewGuardMiddleware(newAdminGuard(), factory)

	app := fiber.New()
	app.Use(BrowserIdentity("ngo_sid", false))
	app.Get("/app/dashboard", mw.Handle, func(c *fiber.Ctx) error {
		sess, ok := SessionFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString("hello " + sess.Claims.SubjectID)
	})
	return app
}

func TestGuardMiddleware_RedirectsWithoutCredential(t *testing.T) {
	app := newGuardedApp(session.NewMemoryBackend())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/app/dashboard", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "ngo_sid=")
}

func TestGuardMiddleware_RendersAuthenticated(t *testing.T) {
	backend := session.NewMemoryBackend()
	store := session.NewFactory(backend, session.NewLayout(config.DefaultSlots()), "gate:", "donor", nil).For(testBrowser)
	require.NoError(t, store.Set(context.Background(), domain.SlotCredential, tokenFor(t, "ADMIN", testNow.Add(time.Hour))))

	app := newGuardedApp(backend)
	req := httptest.NewRequest(http.MethodGet, "/app/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "ngo_sid", Value: testBrowser})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Set-Cookie"))
}

func TestGuardMiddleware_AccessDenied(t *testing.T) {
	backend := session.NewMemoryBackend()
	store := session.NewFactory(backend, session.NewLayout(config.DefaultSlots()), "gate:", "admin", nil).For(testBrowser)
	require.NoError(t, store.Set(context.Background(), domain.SlotCredential, tokenFor(t, "donor", testNow.Add(time.Hour))))

	app := newGuardedApp(backend)
	req := httptest.NewRequest(http.MethodGet, "/app/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "ngo_sid", Value: testBrowser})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/denied", resp.Header.Get("Location"))
}
