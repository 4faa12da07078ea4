package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/events"
	"github.com/spec-kit/session-gate/internal/observability"
	"github.com/spec-kit/session-gate/internal/session"
)

// Destinations are the externally configured surfaces a denied view is sent to.
type Destinations struct {
	Login        string
	AccessDenied string
}

// Guard evaluates a browser's session once when a protected view is entered.
type Guard struct {
	decoder      *TokenDecoder
	policy       Policy
	destinations Destinations
	now          func() time.Time
	logger       *zap.Logger
	metrics      *observability.Metrics
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithClock overrides the time source.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithMetrics records decisions on m.
func WithMetrics(m *observability.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// NewGuard constructs a guard.
func NewGuard(policy Policy, destinations Destinations, logger *zap.Logger, opts ...GuardOption) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		decoder:      NewTokenDecoder(),
		policy:       policy,
		destinations: destinations,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate runs the Loading → terminal transition against store.
// Only backend failures are returned as errors.
func (g *Guard) Evaluate(ctx context.Context, store session.Slots) (domain.Session, error) {
	sess, err := g.evaluate(ctx, store)
	if err != nil {
		return domain.Session{Status: domain.SessionStatusLoading}, err
	}
	g.metrics.RecordGuardDecision(string(sess.Status))
	return sess, nil
}

func (g *Guard) evaluate(ctx context.Context, store session.Slots) (domain.Session, error) {
	raw, ok, err := store.Get(ctx, domain.SlotCredential)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok || raw == "" {
		return domain.Session{Status: domain.SessionStatusNoCredential}, nil
	}

	claims, err := g.decoder.Decode(raw)
	if err != nil {
		g.logger.Info("clearing undecodable credential", zap.Error(err))
		if err := store.ClearShared(ctx); err != nil {
			return domain.Session{}, err
		}
		return domain.Session{Status: domain.SessionStatusMalformed}, nil
	}

	switch g.policy.Classify(claims, g.now()) {
	case VerdictExpired:
		g.logger.Info("clearing expired credential", zap.String("subject_id", claims.SubjectID))
		if err := store.ClearShared(ctx); err != nil {
			return domain.Session{}, err
		}
		if err := store.ClearScoped(ctx); err != nil {
			return domain.Session{}, err
		}
		return domain.Session{Claims: claims, Status: domain.SessionStatusExpired}, nil
	case VerdictUnauthorized:
		g.logger.Info("role not accepted",
			zap.String("subject_id", claims.SubjectID),
			zap.String("role", claims.Role),
			zap.Strings("accepted", g.policy.Roles()))
		return domain.Session{Credential: raw, Claims: claims, Status: domain.SessionStatusInsufficientRole}, nil
	default:
		return domain.Session{Credential: raw, Claims: claims, Status: domain.SessionStatusAuthenticated}, nil
	}
}

// Destination returns where a view in status must go; empty means render.
func (g *Guard) Destination(status domain.SessionStatus) string {
	switch status {
	case domain.SessionStatusAuthenticated, domain.SessionStatusLoading:
		return ""
	case domain.SessionStatusInsufficientRole:
		return g.destinations.AccessDenied
	default:
		return g.destinations.Login
	}
}

// BrowserSlots is a store that knows which browser it belongs to.
type BrowserSlots interface {
	session.Slots
	BrowserID() string
}

// Watch re-evaluates store whenever a shared slot of its browser changes or
// a session is cleared, calling onChange with each result. It blocks until
// ctx is done.
func (g *Guard) Watch(ctx context.Context, dispatcher events.Dispatcher, store BrowserSlots, onChange func(domain.Session)) error {
	pending := make(chan struct{}, 1)
	trigger := func(_ context.Context, event events.Event) error {
		if event.BrowserID != store.BrowserID() {
			return nil
		}
		if payload, ok := event.Payload.(events.SlotChangedPayload); ok && payload.Namespace != domain.NamespaceShared {
			return nil
		}
		select {
		case pending <- struct{}{}:
		default:
		}
		return nil
	}

	unsubscribeSlots := dispatcher.Subscribe(events.EventSlotChanged, trigger)
	defer unsubscribeSlots()
	unsubscribeCleared := dispatcher.Subscribe(events.EventSessionCleared, trigger)
	defer unsubscribeCleared()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pending:
			sess, err := g.Evaluate(ctx, store)
			if err != nil {
				g.logger.Warn("watch evaluation failed", zap.String("browser_id", store.BrowserID()), zap.Error(err))
				continue
			}
			onChange(sess)
		}
	}
}
