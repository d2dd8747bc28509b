package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/anhtuan9622/flippl/internal/retry"
)

// Event types fanned out on a user's channel. Clients re-fetch on receipt;
// events carry no record payload.
const (
	EventTradeChange   = "trade_change"
	EventEntriesChange = "entries_change"
	EventSignedOut     = "signed_out"
)

// Event is a change notification for one user's journal or session.
type Event struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	Action string    `json:"action,omitempty"` // created | updated | deleted
	At     time.Time `json:"at"`
}

// Broker publishes and subscribes events over redis pub/sub, one channel per
// user. Redis carries the events across server instances and browser tabs;
// delivery is fire-and-forget.
type Broker struct {
	client *redis.Client
	logger *zap.Logger
	policy retry.Policy
}

// NewBroker creates a broker on top of an existing redis client.
func NewBroker(client *redis.Client, logger *zap.Logger) *Broker {
	return &Broker{
		client: client,
		logger: logger,
		policy: retry.Policy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, Multiplier: 2, Jitter: 0.2},
	}
}

func channelFor(userID string) string {
	return "journal:changes:" + userID
}

// Publish sends an event on the user's channel, retrying transient redis
// failures. A publish that still fails is logged and dropped: subscribers
// converge on the next poll-driven re-fetch.
func (b *Broker) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = b.policy.Do(ctx, func(ctx context.Context) error {
		return b.client.Publish(ctx, channelFor(event.UserID), payload).Err()
	})
	if err != nil {
		b.logger.Warn("Dropping realtime event",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of events for one user. The returned cancel
// function closes the underlying redis subscription; the event channel is
// closed once the subscription ends.
func (b *Broker) Subscribe(ctx context.Context, userID string) (<-chan Event, func()) {
	sub := b.client.Subscribe(ctx, channelFor(userID))
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("Discarding malformed realtime event", zap.Error(err))
				continue
			}
			select {
			case out <- event:
			default:
				// Slow consumer; drop rather than block the redis reader.
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
