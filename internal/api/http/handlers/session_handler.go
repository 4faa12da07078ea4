package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/events"
	"github.com/spec-kit/session-gate/internal/session"
	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

const keepAliveInterval = 25 * time.Second

// SessionHandler exposes the guard's decision to views.
type SessionHandler struct {
	lifetime   context.Context
	guard      *auth.Guard
	stores     *session.Factory
	dispatcher events.Dispatcher
	siblingURL string
	logger     *zap.Logger
}

// NewSessionHandler constructs handler. Event streams end when lifetime is
// done. dispatcher may be nil, which disables the event stream.
func NewSessionHandler(lifetime context.Context, guard *auth.Guard, stores *session.Factory, dispatcher events.Dispatcher, siblingURL string, logger *zap.Logger) *SessionHandler {
	if lifetime == nil {
		lifetime = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		lifetime:   lifetime,
		guard:      guard,
		stores:     stores,
		dispatcher: dispatcher,
		siblingURL: siblingURL,
		logger:     logger,
	}
}

// Current handles GET /session without redirecting.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	browserID, ok := auth.BrowserIDFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing browser identity")
	}
	sess, err := h.guard.Evaluate(c.UserContext(), h.stores.For(browserID))
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.JSON(fiber.Map{"data": h.projection(sess)})
}

// Events handles GET /session/events: a server-sent event stream carrying a
// fresh projection whenever the shared session of this browser changes.
func (h *SessionHandler) Events(c *fiber.Ctx) error {
	if h.dispatcher == nil {
		return fiber.ErrNotFound
	}
	browserID, ok := auth.BrowserIDFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing browser identity")
	}
	store := h.stores.For(browserID)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		h.stream(h.lifetime, w, store)
	})
	return nil
}

// stream writes projections of store to w until ctx is done or the client
// goes away.
func (h *SessionHandler) stream(parent context.Context, w *bufio.Writer, store *session.Store) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	updates := make(chan domain.Session, 1)
	go func() {
		err := h.guard.Watch(ctx, h.dispatcher, store, func(sess domain.Session) {
			select {
			case updates <- sess:
			case <-ctx.Done():
			}
		})
		if err != nil {
			h.logger.Warn("session watch stopped", zap.String("browser_id", store.BrowserID()), zap.Error(err))
		}
	}()

	if sess, err := h.guard.Evaluate(ctx, store); err == nil {
		if err := writeSessionEvent(w, h.projection(sess)); err != nil {
			return
		}
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case sess := <-updates:
			if err := writeSessionEvent(w, h.projection(sess)); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *SessionHandler) projection(sess domain.Session) fiber.Map {
	data := fiber.Map{
		"app":    h.stores.App(),
		"status": sess.Status,
	}
	if sess.Claims != nil {
		data["claims"] = sess.Claims
	}
	if target := h.guard.Destination(sess.Status); target != "" {
		data["redirect"] = target
	}
	if h.siblingURL != "" {
		data["sibling_url"] = h.siblingURL
	}
	return data
}

func writeSessionEvent(w *bufio.Writer, data fiber.Map) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: session\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

// View handles GET /app/* behind the guard middleware.
func (h *SessionHandler) View(c *fiber.Ctx) error {
	sess, ok := auth.SessionFromContext(c)
	if !ok || !sess.Authenticated() {
		return apperrors.NewUnauthorized("session required")
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"app":  h.stores.App(),
			"view": c.Params("*"),
			"user": sess.Claims,
		},
	})
}
