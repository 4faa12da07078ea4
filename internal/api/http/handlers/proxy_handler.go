package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/pipeline"
	"github.com/spec-kit/session-gate/internal/session"
	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

const maxProxyBody = 16 << 20

var hopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Content-Length":      {},
}

// ProxyHandler forwards /api/* calls to the API boundary through the request pipeline.
type ProxyHandler struct {
	pipeline *pipeline.Pipeline
	stores   *session.Factory
	baseURL  string
}

// NewProxyHandler constructs handler.
func NewProxyHandler(p *pipeline.Pipeline, stores *session.Factory, baseURL string) *ProxyHandler {
	return &ProxyHandler{pipeline: p, stores: stores, baseURL: strings.TrimRight(baseURL, "/")}
}

// Forward handles ALL /api/*.
func (h *ProxyHandler) Forward(c *fiber.Ctx) error {
	browserID, ok := auth.BrowserIDFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing browser identity")
	}

	target := h.baseURL + "/" + c.Params("*")
	if query := string(c.Request().URI().QueryString()); query != "" {
		target += "?" + query
	}

	var body io.Reader
	if raw := c.Body(); len(raw) > 0 {
		body = bytes.NewReader(append([]byte(nil), raw...))
	}
	req, err := http.NewRequestWithContext(c.UserContext(), c.Method(), target, body)
	if err != nil {
		return apperrors.NewValidationError("invalid upstream request", map[string]any{"target": target})
	}
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := http.CanonicalHeaderKey(string(key))
		switch name {
		case "Host", "Cookie", "Authorization", CurrentViewHeader:
			return
		}
		if _, hop := hopHeaders[name]; hop {
			return
		}
		req.Header.Add(name, string(value))
	})

	nav := newRequestNavigator(c)
	scope := pipeline.Scope{Key: browserID, Store: h.stores.For(browserID), Navigator: nav}

	resp, err := h.pipeline.Do(c.UserContext(), scope, req)
	if err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) && nav.target != "" {
			return domainErr.WithDetail("redirect", nav.target)
		}
		return err
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if _, hop := hopHeaders[name]; hop {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(name, value)
		}
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
	if err != nil {
		return apperrors.NewUpstreamError(err)
	}
	return c.Status(resp.StatusCode).Send(payload)
}
