package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ToffenYT/varsly/pkg/models"
)

// Memory in-process Store
type Memory struct {
	mu          sync.RWMutex
	keywords    map[string]models.Keyword
	alerts      map[models.AlertKey]models.Alert
	preferences map[string]models.SubscriberPreference
	now         func() time.Time
}

// MemoryOption configures Memory
type MemoryOption func(*Memory)

// WithMemoryClock sets the clock used for CreatedAt
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory empty store
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		keywords:    make(map[string]models.Keyword),
		alerts:      make(map[models.AlertKey]models.Alert),
		preferences: make(map[string]models.SubscriberPreference),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) ListKeywords(_ context.Context, ownerID string) ([]models.Keyword, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Keyword
	for _, k := range m.keywords {
		if k.OwnerID == ownerID {
			out = append(out, k)
		}
	}
	sortKeywords(out)
	return out, nil
}

func (m *Memory) ListAllKeywords(_ context.Context) ([]models.Keyword, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Keyword, 0, len(m.keywords))
	for _, k := range m.keywords {
		out = append(out, k)
	}
	sortKeywords(out)
	return out, nil
}

func (m *Memory) InsertKeyword(_ context.Context, k *models.Keyword) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = m.now()
	}
	m.keywords[k.ID] = *k
	return nil
}

func (m *Memory) DeleteKeyword(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keywords[id]
	if !ok || k.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.keywords, id)
	return nil
}

func (m *Memory) FindAlert(_ context.Context, key models.AlertKey) (*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.alerts[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) InsertAlert(_ context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := a.Key()
	if _, ok := m.alerts[key]; ok {
		return ErrDuplicate
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.alerts[key] = *a
	return nil
}

func (m *Memory) ListAlertsSince(_ context.Context, ownerID string, since time.Time) ([]models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Alert
	for _, a := range m.alerts {
		if a.OwnerID == ownerID && !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// AlertCount total alerts stored
func (m *Memory) AlertCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}

func (m *Memory) GetPreference(_ context.Context, subscriberID string) (*models.SubscriberPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.preferences[subscriberID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) ListPreferences(_ context.Context, f PreferenceFilter) ([]models.SubscriberPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.SubscriberPreference
	for _, p := range m.preferences {
		if matchesFilter(&p, f) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscriberID < out[j].SubscriberID })
	return out, nil
}

func (m *Memory) UpsertPreference(_ context.Context, p *models.SubscriberPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.preferences[p.SubscriberID]; ok && p.LastNotifiedAt == nil {
		p.LastNotifiedAt = existing.LastNotifiedAt
	}
	m.preferences[p.SubscriberID] = *p
	return nil
}

func (m *Memory) SetNotificationsEnabled(_ context.Context, subscriberID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.preferences[subscriberID]
	if !ok {
		return ErrNotFound
	}
	p.NotificationsEnabled = enabled
	m.preferences[subscriberID] = p
	return nil
}

func (m *Memory) MarkNotified(_ context.Context, subscriberID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.preferences[subscriberID]
	if !ok {
		return ErrNotFound
	}
	p.LastNotifiedAt = &at
	m.preferences[subscriberID] = p
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

func sortKeywords(ks []models.Keyword) {
	sort.Slice(ks, func(i, j int) bool {
		if ks[i].OwnerID != ks[j].OwnerID {
			return ks[i].OwnerID < ks[j].OwnerID
		}
		if !ks[i].CreatedAt.Equal(ks[j].CreatedAt) {
			return ks[i].CreatedAt.Before(ks[j].CreatedAt)
		}
		return strings.ToLower(ks[i].Text) < strings.ToLower(ks[j].Text)
	})
}
