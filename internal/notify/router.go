// Package notify delivers alerts to subscribers, either one email per alert
// (immediate) or one aggregate email per day (digest).
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/internal/mailer"
	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/internal/telemetry"
	"github.com/ToffenYT/varsly/pkg/models"
)

// ErrNoEmail subscriber has no address on file
var ErrNoEmail = errors.New("no email on profile")

// Store what the router reads and stamps
type Store interface {
	GetPreference(ctx context.Context, subscriberID string) (*models.SubscriberPreference, error)
	ListPreferences(ctx context.Context, f store.PreferenceFilter) ([]models.SubscriberPreference, error)
	ListAlertsSince(ctx context.Context, ownerID string, since time.Time) ([]models.Alert, error)
	MarkNotified(ctx context.Context, subscriberID string, at time.Time) error
}

// Status outcome of one delivery decision
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Delivery result of the immediate path for one alert
type Delivery struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Router decides and executes delivery
type Router struct {
	store    Store
	provider mailer.Provider
	links    *Links
	from     string
	workers  int
	window   time.Duration
	now      func() time.Time
	tel      *telemetry.Telemetry
}

// Option configures Router
type Option func(*Router)

// WithWorkers digest parallelism, default 4
func WithWorkers(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithWindow digest look-back, default 24h
func WithWindow(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithTelemetry records delivery counters
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(r *Router) { r.tel = t }
}

// NewRouter provider may be nil; both paths then fail with mailer.ErrNotConfigured
func NewRouter(st Store, provider mailer.Provider, links *Links, from string, opts ...Option) *Router {
	r := &Router{
		store:    st,
		provider: provider,
		links:    links,
		from:     from,
		workers:  4,
		window:   24 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Immediate sends a single-alert email if the owner wants instant delivery.
// A send failure is reported and not retried; the alert stays recorded either way.
func (r *Router) Immediate(ctx context.Context, a models.Alert) (Delivery, error) {
	log := logger.GetLogger("notify")

	pref, err := r.store.GetPreference(ctx, a.OwnerID)
	if err != nil {
		return Delivery{Status: StatusFailed, Reason: "profile not found"}, fmt.Errorf("load preference %s: %w", a.OwnerID, err)
	}

	if !pref.WantsImmediate() {
		r.record(ctx, "immediate", StatusSkipped)
		reason := "notifications disabled"
		if pref.NotificationsEnabled {
			reason = "subscriber prefers " + string(pref.DeliveryMode)
		}
		return Delivery{Status: StatusSkipped, Reason: reason}, nil
	}
	if pref.Email == "" {
		r.record(ctx, "immediate", StatusSkipped)
		return Delivery{Status: StatusSkipped, Reason: ErrNoEmail.Error()}, ErrNoEmail
	}
	if r.provider == nil {
		return Delivery{Status: StatusFailed, Reason: "email provider not configured"}, mailer.ErrNotConfigured
	}

	html, err := renderAlert(a, r.links.footer(a.OwnerID))
	if err != nil {
		return Delivery{Status: StatusFailed, Reason: "render failed"}, err
	}

	err = r.provider.Send(ctx, mailer.Message{
		From:    r.from,
		To:      pref.Email,
		Subject: AlertSubject(a.MatchedKeyword),
		HTML:    html,
	})
	if err != nil {
		r.record(ctx, "immediate", StatusFailed)
		log.Warnf("immediate send to %s failed: %v", a.OwnerID, err)
		return Delivery{Status: StatusFailed, Reason: err.Error()}, fmt.Errorf("send alert: %w", err)
	}

	if err := r.store.MarkNotified(ctx, a.OwnerID, r.now()); err != nil {
		log.Warnf("mark notified %s: %v", a.OwnerID, err)
	}
	r.record(ctx, "immediate", StatusSent)
	log.Infof("alert sent to %s (keyword %q)", a.OwnerID, a.MatchedKeyword)
	return Delivery{Status: StatusSent}, nil
}

// DigestFailure one subscriber whose digest could not be delivered
type DigestFailure struct {
	SubscriberID string `json:"subscriber_id"`
	Error        string `json:"error"`
}

// DigestSummary totals of one digest run
type DigestSummary struct {
	UsersChecked int             `json:"users_checked"`
	Sent         int             `json:"sent"`
	Empty        int             `json:"empty"`
	Skipped      int             `json:"skipped"`
	Failed       int             `json:"failed"`
	Failures     []DigestFailure `json:"failures,omitempty"`
}

// Digest sends one aggregate email to each enabled daily-digest subscriber
// with at least one alert in the trailing window. Subscribers are processed
// independently; one failure never stops the others.
func (r *Router) Digest(ctx context.Context) (DigestSummary, error) {
	log := logger.GetLogger("notify")
	var sum DigestSummary

	if r.provider == nil {
		return sum, mailer.ErrNotConfigured
	}

	prefs, err := r.store.ListPreferences(ctx, store.PreferenceFilter{
		EnabledOnly: true,
		Mode:        models.DeliveryDailyDigest,
	})
	if err != nil {
		return sum, fmt.Errorf("list digest subscribers: %w", err)
	}
	sum.UsersChecked = len(prefs)
	if len(prefs) == 0 {
		log.Info("digest: no daily_digest subscribers")
		return sum, nil
	}

	now := r.now()
	since := now.Add(-r.window)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.workers)

	for _, p := range prefs {
		g.Go(func() error {
			status, err := r.digestOne(ctx, p, since, now)

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case StatusSent:
				sum.Sent++
			case StatusSkipped:
				sum.Skipped++
			case StatusFailed:
				sum.Failed++
				sum.Failures = append(sum.Failures, DigestFailure{SubscriberID: p.SubscriberID, Error: err.Error()})
			default:
				sum.Empty++
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Infof("digest: %d checked, %d sent, %d empty, %d skipped, %d failed",
		sum.UsersChecked, sum.Sent, sum.Empty, sum.Skipped, sum.Failed)
	return sum, nil
}

const statusEmpty Status = "empty"

func (r *Router) digestOne(ctx context.Context, p models.SubscriberPreference, since, now time.Time) (Status, error) {
	log := logger.GetLogger("notify")

	if ctx.Err() != nil {
		return StatusSkipped, nil
	}
	if p.Email == "" {
		r.record(ctx, "digest", StatusSkipped)
		return StatusSkipped, nil
	}

	alerts, err := r.store.ListAlertsSince(ctx, p.SubscriberID, since)
	if err != nil {
		r.record(ctx, "digest", StatusFailed)
		return StatusFailed, fmt.Errorf("list alerts: %w", err)
	}
	if len(alerts) == 0 {
		return statusEmpty, nil
	}

	html, err := renderDigest(alerts, r.links.footer(p.SubscriberID))
	if err != nil {
		r.record(ctx, "digest", StatusFailed)
		return StatusFailed, err
	}

	err = r.provider.Send(ctx, mailer.Message{
		From:    r.from,
		To:      p.Email,
		Subject: DigestSubject(len(alerts)),
		HTML:    html,
	})
	if err != nil {
		r.record(ctx, "digest", StatusFailed)
		log.Warnf("digest to %s failed: %v", p.SubscriberID, err)
		return StatusFailed, err
	}

	if err := r.store.MarkNotified(ctx, p.SubscriberID, now); err != nil {
		log.Warnf("mark notified %s: %v", p.SubscriberID, err)
	}
	r.record(ctx, "digest", StatusSent)
	return StatusSent, nil
}

func (r *Router) record(ctx context.Context, path string, s Status) {
	if r.tel != nil {
		r.tel.RecordNotify(ctx, path, string(s))
	}
}
