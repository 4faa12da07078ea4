package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/observability"
	"github.com/spec-kit/session-gate/internal/session"
	apperrors "github.com/spec-kit/session-gate/pkg/util"
)

// Terminator ends a session after an unrecoverable credential failure.
// EndSession runs once per failed renewal; RedirectToSharedLogin runs for
// every caller that shared it.
type Terminator interface {
	EndSession(ctx context.Context, store session.Slots, cause error) error
	RedirectToSharedLogin(nav domain.Navigator)
}

// errSessionGone marks a rejected call whose session another call already ended.
var errSessionGone = fmt.Errorf("%w: session already ended", ErrRenewalDenied)

// Scope identifies whose session a call runs under.
type Scope struct {
	// Key groups concurrent renewals; one browser shares one renewal.
	Key       string
	Store     session.Slots
	Navigator domain.Navigator
}

type retriedKey struct{}

// Pipeline sends API calls with the stored credential and renews it at most
// once per call when the API rejects it.
type Pipeline struct {
	client     *http.Client
	renewer    Renewer
	terminator Terminator
	renewals   singleflight.Group
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// New constructs a pipeline.
func New(client *http.Client, renewer Renewer, terminator Terminator, logger *zap.Logger, metrics *observability.Metrics) *Pipeline {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		client:     client,
		renewer:    renewer,
		terminator: terminator,
		logger:     logger,
		metrics:    metrics,
	}
}

// Do sends req under scope. A 401 triggers one renewal and one resend; a
// second 401 is returned to the caller untouched. When renewal fails the
// session is ended and a *util.DomainError is returned.
func (p *Pipeline) Do(ctx context.Context, scope Scope, req *http.Request) (*http.Response, error) {
	if err := bufferBody(req); err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}

	credential, _, err := scope.Store.Get(ctx, domain.SlotCredential)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	resp, err := p.send(ctx, req, credential)
	if err != nil {
		return nil, apperrors.NewUpstreamError(err)
	}
	if resp.StatusCode != http.StatusUnauthorized || alreadyRetried(ctx) {
		return resp, nil
	}
	discard(resp)

	ctx = context.WithValue(ctx, retriedKey{}, true)
	renewed, err := p.renew(ctx, scope, credential)
	if err != nil {
		p.terminator.RedirectToSharedLogin(scope.Navigator)
		return nil, sessionEnded(err)
	}

	resp, err = p.send(ctx, req, renewed)
	if err != nil {
		return nil, apperrors.NewUpstreamError(err)
	}
	return resp, nil
}

// renew returns a credential newer than rejected, sharing one renewal call
// between concurrent callers of the same scope. A failed renewal ends the
// session once, however many callers waited on it.
func (p *Pipeline) renew(ctx context.Context, scope Scope, rejected string) (string, error) {
	renewCtx := context.WithoutCancel(ctx)
	val, err, shared := p.renewals.Do(scope.Key, func() (interface{}, error) {
		token, err := p.renewOnce(renewCtx, scope.Store, rejected)
		if err != nil && !errors.Is(err, errSessionGone) {
			if endErr := p.terminator.EndSession(renewCtx, scope.Store, err); endErr != nil {
				p.logger.Error("failed to end session", zap.Error(endErr))
			}
		}
		return token, err
	})
	if err != nil {
		return "", err
	}
	if shared {
		p.logger.Debug("joined in-flight renewal", zap.String("scope", scope.Key))
	}
	return val.(string), nil
}

func (p *Pipeline) renewOnce(ctx context.Context, store session.Slots, rejected string) (string, error) {
	// a renewal that finished while this call was in flight already replaced the credential
	current, _, err := store.Get(ctx, domain.SlotCredential)
	if err != nil {
		return "", err
	}
	if current != "" && current != rejected {
		p.metrics.RecordRenewal("reused")
		return current, nil
	}
	if current == "" && rejected != "" {
		return "", errSessionGone
	}

	subjectID, err := subjectFromProfile(ctx, store)
	if err != nil {
		p.metrics.RecordRenewal("no_subject")
		return "", err
	}

	token, err := p.renewer.Renew(ctx, subjectID)
	if err != nil {
		outcome := "denied"
		if errors.Is(err, ErrNetwork) {
			outcome = "network"
		}
		p.metrics.RecordRenewal(outcome)
		p.logger.Warn("credential renewal failed", zap.String("subject_id", subjectID), zap.Error(err))
		return "", err
	}

	if err := store.Set(ctx, domain.SlotCredential, token); err != nil {
		return "", fmt.Errorf("store renewed credential: %w", err)
	}
	p.metrics.RecordRenewal("success")
	p.logger.Info("credential renewed", zap.String("subject_id", subjectID))
	return token, nil
}

func subjectFromProfile(ctx context.Context, store session.Slots) (string, error) {
	raw, ok, err := store.Get(ctx, domain.SlotUserProfile)
	if err != nil {
		return "", err
	}
	if !ok || raw == "" {
		return "", ErrNoSubject
	}
	var profile domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return "", fmt.Errorf("%w: unreadable profile", ErrNoSubject)
	}
	if profile.SubjectID() == "" {
		return "", ErrNoSubject
	}
	return profile.SubjectID(), nil
}

func (p *Pipeline) send(ctx context.Context, req *http.Request, credential string) (*http.Response, error) {
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	if credential != "" {
		out.Header.Set("Authorization", "Bearer "+credential)
	} else {
		out.Header.Del("Authorization")
	}
	return p.client.Do(out)
}

func alreadyRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey{}).(bool)
	return retried
}

// bufferBody makes the body replayable for the resend.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	_ = req.Body.Close()
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.Body, _ = req.GetBody()
	return nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sessionEnded(cause error) error {
	code := apperrors.CodeRenewalDenied
	if errors.Is(cause, ErrNetwork) {
		code = apperrors.CodeNetwork
	}
	return apperrors.NewSessionEnded(code, "session ended", cause)
}
