package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Action identifies the duty mutation that occurred.
type Action string

const (
	ActionPick    Action = "pick"
	ActionRelease Action = "release"
	ActionAssign  Action = "assign"
)

// DutyEvent notifies observers that the duty calendar changed. The payload
// is advisory only: consumers re-fetch authoritative state rather than
// trusting the event contents.
type DutyEvent struct {
	Action     Action    `json:"action"`
	SessionID  string    `json:"session_id"`
	ExamTypeID string    `json:"exam_type_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher is the outbound event port. Implementations deliver
// best-effort; the engine never fails a mutation on publish errors.
type Publisher interface {
	Publish(ctx context.Context, event DutyEvent) error
}

// RedisPublisher fans duty events out over a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher builds a publisher over the given channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "duty-events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish serialises the event and publishes it to the channel.
func (p *RedisPublisher) Publish(ctx context.Context, event DutyEvent) error {
	if p.client == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, DutyEvent) error { return nil }
