package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/domain"
	"github.com/spec-kit/session-gate/internal/events"
)

// AuditService writes an audit trail of credential changes and session
// teardowns seen on the dispatcher, whichever application caused them.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events and returns a func that removes the
// subscriptions.
func (a *AuditService) RegisterHandlers() func() {
	if a.dispatcher == nil {
		return func() {}
	}
	unsubscribeSlots := a.dispatcher.Subscribe(events.EventSlotChanged, a.handleSlotChanged)
	unsubscribeCleared := a.dispatcher.Subscribe(events.EventSessionCleared, a.handleSessionCleared)
	return func() {
		unsubscribeSlots()
		unsubscribeCleared()
	}
}

func (a *AuditService) handleSlotChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SlotChangedPayload)
	if !ok || payload.Slot != domain.SlotCredential {
		return nil
	}
	message := "CredentialStored"
	if payload.Removed {
		message = "CredentialRemoved"
	}
	a.logger.Info(message,
		zap.String("event_id", event.ID),
		zap.String("browser_id", event.BrowserID),
		zap.String("app", event.App),
	)
	return nil
}

func (a *AuditService) handleSessionCleared(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.SessionClearedPayload)
	a.logger.Info("SessionCleared",
		zap.String("event_id", event.ID),
		zap.String("browser_id", event.BrowserID),
		zap.String("app", event.App),
		zap.String("scope", string(payload.Scope)),
		zap.String("reason", payload.Reason),
	)
	return nil
}
