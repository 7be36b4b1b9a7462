package identity

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// eventChannel is the Redis pub/sub channel carrying identity events so
// revocations reach every application instance.
const eventChannel = "clearline:identity:events"

// EventBus fans identity events out over Redis pub/sub.
type EventBus struct {
	client *redis.Client
	logger *slog.Logger
	out    chan Event
}

// NewEventBus constructs an EventBus on the given Redis client.
func NewEventBus(client *redis.Client, logger *slog.Logger) *EventBus {
	return &EventBus{
		client: client,
		logger: logger,
		out:    make(chan Event, 16),
	}
}

// Publish broadcasts an event to all subscribers.
func (b *EventBus) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, eventChannel, data).Err()
}

// Run subscribes to the event channel and pumps messages into Events until
// the context is cancelled.
func (b *EventBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, eventChannel)
	defer func() {
		_ = sub.Close()
		close(b.out)
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				if b.logger != nil {
					b.logger.Warn("identity event decode", slog.Any("error", err))
				}
				continue
			}
			select {
			case b.out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Events returns the stream of events received from other instances and from
// local publishes echoed back by Redis.
func (b *EventBus) Events() <-chan Event {
	return b.out
}
