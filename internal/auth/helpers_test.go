package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/config"
	"github.com/spec-kit/session-gate/internal/session"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func tokenFor(t *testing.T, role string, exp time.Time) string {
	t.Helper()
	return signToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"email": "ops@example.org",
		"name":  "Ops",
		"role":  role,
		"iat":   testNow.Add(-time.Hour).Unix(),
		"exp":   exp.Unix(),
	})
}

type stores struct {
	backend *session.MemoryBackend
	admin   *session.Store
	donor   *session.Store
}

func newStores() stores {
	backend := session.NewMemoryBackend()
	layout := session.NewLayout(config.DefaultSlots())
	return stores{
		backend: backend,
		admin:   session.NewFactory(backend, layout, "gate:", "admin", nil).For("browser-1"),
		donor:   session.NewFactory(backend, layout, "gate:", "donor", nil).For("browser-1"),
	}
}

func newAdminGuard() *Guard {
	return NewGuard(NewPolicy("admin"), Destinations{Login: "/login", AccessDenied: "/denied"}, zap.NewNop(),
		WithClock(func() time.Time { return testNow }))
}
