// Package store persists keywords, alerts and subscriber preferences.
//
// Two implementations share one contract: Postgres (pgx) for production and
// Memory for tests and database-less dry runs. Both enforce the alert
// idempotency key (owner, notice title, matched keyword) themselves.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ToffenYT/varsly/pkg/models"
)

var (
	// ErrNotFound no row for the given key
	ErrNotFound = errors.New("not found")
	// ErrDuplicate unique key already taken
	ErrDuplicate = errors.New("already exists")
)

// PreferenceFilter narrows ListPreferences. Zero value lists everyone.
type PreferenceFilter struct {
	EnabledOnly bool
	Mode        models.DeliveryMode
}

// Store full persistence contract
type Store interface {
	ListKeywords(ctx context.Context, ownerID string) ([]models.Keyword, error)
	ListAllKeywords(ctx context.Context) ([]models.Keyword, error)
	InsertKeyword(ctx context.Context, k *models.Keyword) error
	DeleteKeyword(ctx context.Context, ownerID, id string) error

	FindAlert(ctx context.Context, key models.AlertKey) (*models.Alert, error)
	// InsertAlert fills ID and CreatedAt; ErrDuplicate when the idempotency key exists
	InsertAlert(ctx context.Context, a *models.Alert) error
	// ListAlertsSince newest first
	ListAlertsSince(ctx context.Context, ownerID string, since time.Time) ([]models.Alert, error)

	GetPreference(ctx context.Context, subscriberID string) (*models.SubscriberPreference, error)
	ListPreferences(ctx context.Context, f PreferenceFilter) ([]models.SubscriberPreference, error)
	UpsertPreference(ctx context.Context, p *models.SubscriberPreference) error
	SetNotificationsEnabled(ctx context.Context, subscriberID string, enabled bool) error
	MarkNotified(ctx context.Context, subscriberID string, at time.Time) error

	Ping(ctx context.Context) error
	Close()
}

func matchesFilter(p *models.SubscriberPreference, f PreferenceFilter) bool {
	if f.EnabledOnly && !p.NotificationsEnabled {
		return false
	}
	if f.Mode != "" && p.DeliveryMode != f.Mode {
		return false
	}
	return true
}
