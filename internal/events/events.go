// Package events publishes pipeline events to Redis pub/sub for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/pkg/models"
)

const (
	TypeAlertCreated = "alert.created"
	TypeUnsubscribed = "subscriber.unsubscribed"
)

// Event message body
type Event struct {
	Type         string        `json:"type"`
	SubscriberID string        `json:"subscriber_id"`
	Alert        *models.Alert `json:"alert,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// Publisher sink for events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Redis publishes JSON events on one channel
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis creates the publisher
func NewRedis(rdb *redis.Client, channel string) *Redis {
	return &Redis{rdb: rdb, channel: channel}
}

func (r *Redis) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// AlertCreated publishes an alert.created event; failures are logged, never returned
func AlertCreated(ctx context.Context, p Publisher, a models.Alert) {
	publish(ctx, p, Event{
		Type:         TypeAlertCreated,
		SubscriberID: a.OwnerID,
		Alert:        &a,
		OccurredAt:   time.Now().UTC(),
	})
}

// Unsubscribed publishes a subscriber.unsubscribed event; failures are logged, never returned
func Unsubscribed(ctx context.Context, p Publisher, subscriberID string) {
	publish(ctx, p, Event{
		Type:         TypeUnsubscribed,
		SubscriberID: subscriberID,
		OccurredAt:   time.Now().UTC(),
	})
}

func publish(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.GetLogger("events").Warnf("event not published: %v", err)
	}
}
