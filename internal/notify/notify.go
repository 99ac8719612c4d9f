// Package notify delegates push-style notifications. The runtime hands over
// a payload and moves on: delivery failures are logged by the implementation
// and never reach the state machine.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Notification kinds.
const (
	KindSessionStartingSoon = "session-starting-soon"
	KindSessionStarted      = "session-started"
	KindSessionEnded        = "session-ended"
	KindParticipantRejected = "participant-rejected"
	KindSessionCancelled    = "session-cancelled"
)

type Notification struct {
	Kind      string         `json:"kind"`
	SessionID string         `json:"sessionId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Push(ctx context.Context, n Notification)
}

// Discard drops every notification. Used when no delivery backend is wired.
type Discard struct{}

func (Discard) Push(context.Context, Notification) {}

// Log writes notifications to the structured log instead of delivering them.
// The default when REDIS_URL is unset.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Push(_ context.Context, n Notification) {
	l.Logger.Info("push notification",
		"kind", n.Kind,
		"session_id", n.SessionID,
		"user_id", n.UserID,
	)
}

// RedisPublisher publishes notification payloads to a Redis channel for the
// external delivery service to pick up.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

func (p *RedisPublisher) Push(ctx context.Context, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		p.logger.Error("encoding notification", "kind", n.Kind, "error", err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Error("publishing notification", "kind", n.Kind, "error", err)
	}
}
