package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/session-gate/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSlotChanged    EventType = "slot_changed"
	EventSessionCleared EventType = "session_cleared"
)

// ClearScope tells listeners how much of a session was torn down.
type ClearScope string

const (
	ClearScopeScoped ClearScope = "scoped"
	ClearScopeShared ClearScope = "shared"
	ClearScopeFull   ClearScope = "full"
)

// Event is a storage or session notification scoped to one browser.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	BrowserID string      `json:"browser_id"`
	App       string      `json:"app"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SlotChangedPayload payload.
type SlotChangedPayload struct {
	Slot      string           `json:"slot"`
	Namespace domain.Namespace `json:"namespace"`
	Removed   bool             `json:"removed"`
}

// SessionClearedPayload payload.
type SessionClearedPayload struct {
	Scope  ClearScope `json:"scope"`
	Reason string     `json:"reason,omitempty"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType EventType, browserID, app string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		BrowserID: browserID,
		App:       app,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
