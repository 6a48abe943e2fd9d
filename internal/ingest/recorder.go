// Package ingest runs one ingestion pass: fetch notices, match them against
// every enabled subscriber's keywords and record each match exactly once.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/pkg/models"
)

// Store persistence needed by ingestion
type Store interface {
	ListAllKeywords(ctx context.Context) ([]models.Keyword, error)
	ListPreferences(ctx context.Context, f store.PreferenceFilter) ([]models.SubscriberPreference, error)
	FindAlert(ctx context.Context, key models.AlertKey) (*models.Alert, error)
	InsertAlert(ctx context.Context, a *models.Alert) error
}

// Recorder writes matches as alerts, at most once per (owner, title, keyword)
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder
func NewRecorder(st Store) *Recorder {
	return &Recorder{store: st}
}

// RecordMatch returns the stored alert and whether this call created it.
// A unique-key conflict on insert means a concurrent writer won; that is
// reported as created=false, not as an error.
func (r *Recorder) RecordMatch(ctx context.Context, subscriberID string, c models.TenderCandidate, keyword string) (models.Alert, bool, error) {
	a := models.NewAlert(subscriberID, c, keyword)

	existing, err := r.store.FindAlert(ctx, a.Key())
	if err == nil {
		return *existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return a, false, fmt.Errorf("find alert: %w", err)
	}

	if err := r.store.InsertAlert(ctx, &a); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return a, false, nil
		}
		return a, false, fmt.Errorf("insert alert: %w", err)
	}
	return a, true, nil
}
