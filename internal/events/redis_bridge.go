package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDispatcher fans events out through a Redis channel so that every
// application process sharing the store observes the same notifications.
type RedisDispatcher struct {
	client  *redis.Client
	channel string
	local   *inMemoryDispatcher
	logger  *zap.Logger
}

// NewRedisDispatcher builds a dispatcher publishing on channel.
func NewRedisDispatcher(client *redis.Client, channel string, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{
		client:  client,
		channel: channel,
		local:   newInMemoryDispatcher(),
		logger:  logger,
	}
}

// Publish sends the event to Redis. Local handlers receive it through Run.
func (d *RedisDispatcher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return d.client.Publish(ctx, d.channel, data).Err()
}

// Subscribe registers a local handler.
func (d *RedisDispatcher) Subscribe(eventType EventType, handler EventHandler) func() {
	return d.local.Subscribe(eventType, handler)
}

// Run relays channel messages to local handlers until ctx is done.
func (d *RedisDispatcher) Run(ctx context.Context) error {
	pubsub := d.client.Subscribe(ctx, d.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", d.channel, err)
	}
	d.logger.Info("listening for slot events", zap.String("channel", d.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			event, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				d.logger.Warn("dropping undecodable event", zap.Error(err))
				continue
			}
			if err := d.local.Publish(ctx, event); err != nil {
				d.logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
			}
		}
	}
}

// DecodeEvent parses a JSON event restoring its typed payload.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Event
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Event{}, err
	}
	event := envelope.Event
	switch event.Type {
	case EventSlotChanged:
		var payload SlotChangedPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return Event{}, err
		}
		event.Payload = payload
	case EventSessionCleared:
		var payload SessionClearedPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return Event{}, err
		}
		event.Payload = payload
	default:
		return Event{}, fmt.Errorf("unknown event type %q", event.Type)
	}
	return event, nil
}
