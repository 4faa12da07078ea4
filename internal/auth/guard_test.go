package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/config"
	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/events"
	"github.com/spec-kit/session-gate/internal/session"
)

func TestGuard_NoCredential(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	require.NoError(t, s.admin.Set(ctx, domain.SlotUserProfile, `{"id":"user-1"}`))

	sess, err := newAdminGuard().Evaluate(ctx, s.admin)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionStatusNoCredential, sess.Status)
	assert.Equal(t, "/login", newAdminGuard().Destination(sess.Status))
	_, ok, _ := s.admin.Get(ctx, domain.SlotUserProfile)
	assert.True(t, ok, "shared slots stay untouched")
}

func TestGuard_Authenticated(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	raw := tokenFor(t, "Admin", testNow.Add(time.Hour))
	require.NoError(t, s.admin.Set(ctx, domain.SlotCredential, raw))

	sess, err := newAdminGuard().Evaluate(ctx, s.admin)
	require.NoError(t, err)

	assert.True(t, sess.Authenticated())
	assert.Equal(t, raw, sess.Credential)
	assert.Equal(t, "user-1", sess.Claims.SubjectID)
	assert.Empty(t, newAdminGuard().Destination(sess.Status))
}

func TestGuard_ExpiredClearsSharedAndOwnScopedOnly(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	require.NoError(t, s.admin.Set(ctx, domain.SlotCredential, tokenFor(t, "admin", testNow.Add(-time.Minute))))
	require.NoError(t, s.admin.Set(ctx, domain.SlotUserProfile, `{"id":"user-1"}`))
	require.NoError(t, s.admin.Set(ctx, "uiTheme", "dark"))
	require.NoError(t, s.donor.Set(ctx, "uiTheme", "light"))

	sess, err := newAdminGuard().Evaluate(ctx, s.admin)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionStatusExpired, sess.Status)
	_, ok, _ := s.admin.Get(ctx, domain.SlotCredential)
	assert.False(t, ok)
	_, ok, _ = s.admin.Get(ctx, "uiTheme")
	assert.False(t, ok)
	theme, ok, _ := s.donor.Get(ctx, "uiTheme")
	assert.True(t, ok)
	assert.Equal(t, "light", theme)
}

func TestGuard_ExpiredForAnyPastExpiry(t *testing.T) {
	ctx := context.Background()
	for _, age := range []time.Duration{time.Second, time.Hour, 24 * 365 * time.Hour} {
		s := newStores()
		require.NoError(t, s.admin.Set(ctx, domain.SlotCredential, tokenFor(t, "admin", testNow.Add(-age))))

		sess, err := newAdminGuard().Evaluate(ctx, s.admin)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionStatusExpired, sess.Status)
		_, ok, _ := s.admin.Get(ctx, domain.SlotCredential)
		assert.False(t, ok)
	}
}

func TestGuard_InsufficientRoleKeepsCredential(t *testing.T) {
	ctx := context.Background()
	for _, role := range []string{"donor", "Donor", "DONOR", "ngo"} {
		s := newStores()
		raw := tokenFor(t, role, testNow.Add(time.Hour))
		require.NoError(t, s.admin.Set(ctx, domain.SlotCredential, raw))
		require.NoError(t, s.admin.Set(ctx, "uiTheme", "dark"))

		sess, err := newAdminGuard().Evaluate(ctx, s.admin)
		require.NoError(t, err)

		assert.Equal(t, domain.SessionStatusInsufficientRole, sess.Status, role)
		assert.Equal(t, "/denied", newAdminGuard().Destination(sess.Status))
		got, ok, _ := s.admin.Get(ctx, domain.SlotCredential)
		assert.True(t, ok)
		assert.Equal(t, raw, got)
		_, ok, _ = s.admin.Get(ctx, "uiTheme")
		assert.True(t, ok)
	}
}

func TestGuard_MalformedClearsShared(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	require.NoError(t, s.admin.Set(ctx, domain.SlotCredential, "not-a-token"))
	require.NoError(t, s.admin.Set(ctx, domain.SlotUserProfile, `{"id":"user-1"}`))

	sess, err := newAdminGuard().Evaluate(ctx, s.admin)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionStatusMalformed, sess.Status)
	assert.Equal(t, "/login", newAdminGuard().Destination(sess.Status))
	_, ok, _ := s.admin.Get(ctx, domain.SlotCredential)
	assert.False(t, ok)
	_, ok, _ = s.admin.Get(ctx, domain.SlotUserProfile)
	assert.False(t, ok)
}

func TestGuard_SiblingStillAuthenticatedAfterRoleDenial(t *testing.T) {
	ctx := context.Background()
	s := newStores()
	require.NoError(t, s.donor.Set(ctx, domain.SlotCredential, tokenFor(t, "donor", testNow.Add(time.Hour))))

	adminSess, err := newAdminGuard().Evaluate(ctx, s.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusInsufficientRole, adminSess.Status)

	donorGuard := NewGuard(NewPolicy(), Destinations{Login: "/login"}, zap.NewNop(),
		WithClock(func() time.Time { return testNow }))
	donorSess, err := donorGuard.Evaluate(ctx, s.donor)
	require.NoError(t, err)
	assert.True(t, donorSess.Authenticated())
}

func TestGuard_WatchReevaluatesOnSharedChange(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	backend := session.NewMemoryBackend()
	layout := session.NewLayout(config.DefaultSlots())
	admin := session.NewFactory(backend, layout, "gate:", "admin", dispatcher).For("browser-1")
	donor := session.NewFactory(backend, layout, "gate:", "donor", dispatcher).For("browser-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan domain.Session, 8)
	done := make(chan error, 1)
	go func() {
		done <- newAdminGuard().Watch(ctx, dispatcher, admin, func(s domain.Session) { results <- s })
	}()

	// the subscription is registered asynchronously; keep writing until observed
	raw := tokenFor(t, "admin", testNow.Add(time.Hour))
	require.Eventually(t, func() bool {
		_ = donor.Set(context.Background(), domain.SlotCredential, raw)
		select {
		case s := <-results:
			return s.Authenticated()
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, donor.ClearShared(context.Background()))
	require.Eventually(t, func() bool {
		select {
		case s := <-results:
			return s.Status == domain.SessionStatusNoCredential
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
