package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/internal/matcher"
	"github.com/ToffenYT/varsly/internal/notify"
	"github.com/ToffenYT/varsly/internal/source"
	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/internal/telemetry"
	"github.com/ToffenYT/varsly/pkg/models"
)

// Fetcher yields the notices of one run; *source.Chain in production
type Fetcher interface {
	Fetch(ctx context.Context) source.Outcome
}

// AlertHook called once for every alert created by a run. Hooks that send
// report the delivery status; the rest return "".
type AlertHook func(ctx context.Context, a models.Alert) notify.Status

// Attempt source attempt as reported in a Summary
type Attempt struct {
	Source string `json:"source"`
	Status string `json:"status"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// Summary result of one run
type Summary struct {
	OK             bool      `json:"ok"`
	Source         string    `json:"source,omitempty"`
	TendersChecked int       `json:"tenders_checked"`
	Rejected       int       `json:"rejected"`
	Subscriptions  int       `json:"subscriptions"`
	Matches        int       `json:"matches"`
	Inserted       int       `json:"inserted"`
	Duplicates     int       `json:"duplicates"`
	Errors         int       `json:"errors"`
	Sent           int       `json:"sent"`
	SendSkipped    int       `json:"send_skipped"`
	SendFailed     int       `json:"send_failed"`
	Cancelled      bool      `json:"cancelled,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Attempts       []Attempt `json:"attempts,omitempty"`
}

const (
	reasonNoKeywords    = "no subscriber keywords"
	reasonNoSubscribers = "no enabled subscribers"
)

// Pipeline source → normalize → match → record → hooks
type Pipeline struct {
	fetcher  Fetcher
	store    Store
	recorder *Recorder
	hooks    []AlertHook
	workers  int
	tel      *telemetry.Telemetry
}

// Option configures Pipeline
type Option func(*Pipeline)

// WithHooks adds alert-created hooks
func WithHooks(hooks ...AlertHook) Option {
	return func(p *Pipeline) { p.hooks = append(p.hooks, hooks...) }
}

// WithWorkers hook parallelism, default 4
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithTelemetry records run metrics and a span per run
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(p *Pipeline) { p.tel = t }
}

// NewPipeline creates a Pipeline
func NewPipeline(f Fetcher, st Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:  f,
		store:    st,
		recorder: NewRecorder(st),
		workers:  4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type subscription struct {
	ownerID string
	keyword string
}

// Run performs one ingestion pass. Cancellation is honoured between
// candidates; the partial summary is returned together with ctx.Err().
// Only a failure to load subscriptions fails the run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	log := logger.GetLogger("ingest")
	start := time.Now()
	var sum Summary

	ctx, end := p.startSpan(ctx, &sum)
	defer end()

	subs, reason, err := p.subscriptions(ctx)
	if err != nil {
		return sum, err
	}
	sum.Subscriptions = len(subs)
	if reason != "" {
		sum.OK = true
		sum.Reason = reason
		log.Info(reason)
		return sum, nil
	}

	outcome := p.fetcher.Fetch(ctx)
	sum.Source = outcome.Source
	sum.TendersChecked = len(outcome.Candidates)
	sum.Rejected = outcome.Rejected
	for _, a := range outcome.Attempts {
		att := Attempt{Source: a.Source, Status: string(a.Status), Count: a.Count}
		if a.Err != nil {
			att.Error = a.Err.Error()
		}
		sum.Attempts = append(sum.Attempts, att)
		if p.tel != nil {
			p.tel.RecordSourceAttempt(ctx, a.Source, string(a.Status))
		}
	}

	// alerts recorded before a cancellation are still handed to the hooks
	hookCtx := context.WithoutCancel(ctx)
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(p.workers)

candidates:
	for _, c := range outcome.Candidates {
		for _, s := range subs {
			if ctx.Err() != nil {
				sum.Cancelled = true
				break candidates
			}
			if !matcher.Matches(c, s.keyword) {
				continue
			}
			sum.Matches++

			a, created, err := p.recorder.RecordMatch(ctx, s.ownerID, c, s.keyword)
			if err != nil {
				sum.Errors++
				log.Errorf("record match %s/%q: %v", s.ownerID, s.keyword, err)
				continue
			}
			if !created {
				sum.Duplicates++
				continue
			}
			sum.Inserted++
			for _, hook := range p.hooks {
				g.Go(func() error {
					status := hook(hookCtx, a)
					mu.Lock()
					defer mu.Unlock()
					sum.count(status)
					return nil
				})
			}
		}
	}
	_ = g.Wait()

	sum.OK = true
	if p.tel != nil {
		p.tel.RecordAlerts(ctx, sum.Inserted, sum.Duplicates, sum.Rejected)
		p.tel.RecordIngest(ctx, time.Since(start), sum.Source, !sum.Cancelled)
	}
	log.Infof("ingest from %s: %d tenders, %d matches, %d inserted, %d duplicates, %d errors, %d sent, %d send failures",
		sum.Source, sum.TendersChecked, sum.Matches, sum.Inserted, sum.Duplicates, sum.Errors, sum.Sent, sum.SendFailed)

	if sum.Cancelled {
		return sum, ctx.Err()
	}
	return sum, nil
}

func (s *Summary) count(status notify.Status) {
	switch status {
	case notify.StatusSent:
		s.Sent++
	case notify.StatusSkipped:
		s.SendSkipped++
	case notify.StatusFailed:
		s.SendFailed++
	}
}

// subscriptions keyword pairs of enabled subscribers, or a reason why there are none
func (p *Pipeline) subscriptions(ctx context.Context) ([]subscription, string, error) {
	keywords, err := p.store.ListAllKeywords(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list keywords: %w", err)
	}
	if len(keywords) == 0 {
		return nil, reasonNoKeywords, nil
	}

	prefs, err := p.store.ListPreferences(ctx, store.PreferenceFilter{EnabledOnly: true})
	if err != nil {
		return nil, "", fmt.Errorf("list preferences: %w", err)
	}
	enabled := make(map[string]bool, len(prefs))
	for _, pref := range prefs {
		enabled[pref.SubscriberID] = true
	}

	subs := make([]subscription, 0, len(keywords))
	for _, k := range keywords {
		if enabled[k.OwnerID] {
			subs = append(subs, subscription{ownerID: k.OwnerID, keyword: k.Text})
		}
	}
	if len(subs) == 0 {
		return nil, reasonNoSubscribers, nil
	}
	return subs, "", nil
}

func (p *Pipeline) startSpan(ctx context.Context, sum *Summary) (context.Context, func()) {
	if p.tel == nil {
		return ctx, func() {}
	}
	ctx, span := p.tel.StartSpan(ctx, "ingest.run")
	return ctx, func() {
		span.SetAttributes(
			attribute.String("source", sum.Source),
			attribute.Int("tenders_checked", sum.TendersChecked),
			attribute.Int("inserted", sum.Inserted),
		)
		span.End()
	}
}
