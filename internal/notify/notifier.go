// Package notify delivers ticket notifications to users on a best-effort basis.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

// Notifier sends one event to one user.
type Notifier interface {
	Notify(ctx context.Context, userID string, event events.Event) error
}

// Message is the wire payload published for downstream delivery workers.
type Message struct {
	UserID string       `json:"user_id"`
	Event  events.Event `json:"event"`
}

// RedisNotifier publishes notifications onto a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

// NewRedisNotifier builds a notifier publishing to channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, timeout: 2 * time.Second}
}

// Notify publishes the message; it never blocks longer than the notifier timeout.
func (n *RedisNotifier) Notify(ctx context.Context, userID string, event events.Event) error {
	data, err := json.Marshal(Message{UserID: userID, Event: event})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.client.Publish(ctx, n.channel, string(data)).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// LogNotifier only logs notifications; used when no Redis is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, userID string, event events.Event) error {
	n.logger.Debug("notification",
		zap.String("user_id", userID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	return nil
}
