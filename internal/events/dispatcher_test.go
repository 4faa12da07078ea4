package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/session-gate/internal/domain"
)

func TestInMemoryDispatcher_DeliversToEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string

	d.Subscribe(EventSlotChanged, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.BrowserID)
		return errors.New("boom")
	})
	d.Subscribe(EventSlotChanged, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.BrowserID)
		return nil
	})
	d.Subscribe(EventSessionCleared, func(_ context.Context, _ Event) error {
		got = append(got, "cleared")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventSlotChanged, "b1", "admin", nil))
	require.Error(t, err)
	assert.Equal(t, []string{"first:b1", "second:b1"}, got)
}

func TestInMemoryDispatcher_Unsubscribe(t *testing.T) {
	d := NewInMemoryDispatcher()
	calls := 0
	cancel := d.Subscribe(EventSessionCleared, func(context.Context, Event) error {
		calls++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), NewEvent(EventSessionCleared, "b1", "admin", nil)))
	cancel()
	cancel()
	require.NoError(t, d.Publish(context.Background(), NewEvent(EventSessionCleared, "b1", "admin", nil)))

	assert.Equal(t, 1, calls)
}

func TestDecodeEvent_RestoresPayload(t *testing.T) {
	original := NewEvent(EventSlotChanged, "b1", "donor", SlotChangedPayload{
		Slot:      domain.SlotCredential,
		Namespace: domain.NamespaceShared,
		Removed:   true,
	})
	data, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, original.ID, decoded.ID)
	payload, ok := decoded.Payload.(SlotChangedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.SlotCredential, payload.Slot)
	assert.True(t, payload.Removed)
}

func TestDecodeEvent_UnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"token_rotated","payload":{}}`))
	require.Error(t, err)
}
