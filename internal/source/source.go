// Package source fetches tender notices from exactly one upstream per run.
//
// Sources are tried in priority order; an error, a timeout or an empty result
// falls through to the next one. The chain always ends with the static dataset,
// which cannot fail.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ToffenYT/varsly/internal/config"
	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/internal/normalize"
	"github.com/ToffenYT/varsly/pkg/models"
)

// ErrEmpty returned by a source that answered but produced no usable notices
var ErrEmpty = errors.New("source returned no notices")

// Source one upstream notice source
type Source interface {
	Name() string
	Fetch(ctx context.Context) (normalize.Result, error)
}

// Status result of one attempt
type Status string

const (
	StatusData   Status = "data"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// Attempt what happened when one source was tried
type Attempt struct {
	Source   string
	Status   Status
	Count    int
	Rejected int
	Err      error
	Duration time.Duration
}

// Outcome notices of the winning source plus the full attempt log
type Outcome struct {
	Source     string
	Candidates []models.TenderCandidate
	Rejected   int
	Attempts   []Attempt
}

// Chain ordered sources with a fallback that never fails
type Chain struct {
	sources  []Source
	fallback Source
	timeout  time.Duration
}

// NewChain builds a chain. fallback may be nil, in which case Static is used.
func NewChain(timeout time.Duration, fallback Source, sources ...Source) *Chain {
	if fallback == nil {
		fallback = NewStatic()
	}
	return &Chain{sources: sources, fallback: fallback, timeout: timeout}
}

// FromConfig assembles the chain in priority order from whichever sources are configured
func FromConfig(cfg *config.SourceConfig, client *http.Client) *Chain {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var sources []Source
	if cfg.SubscriptionKey != "" {
		sources = append(sources, NewSearchAPI(client, cfg.SearchBaseURL, cfg.SubscriptionKey,
			WithWindow(time.Duration(cfg.SearchWindowDays)*24*time.Hour),
			WithPageSize(cfg.SearchPageSize),
			WithStatus(cfg.SearchStatus),
		))
	}
	if cfg.JSONURL != "" {
		sources = append(sources, NewJSONFeed(client, cfg.JSONURL))
	}
	if cfg.CSVURL != "" {
		sources = append(sources, NewCSVFeed(client, cfg.CSVURL, cfg.CSVMaxRows))
	}
	return NewChain(cfg.Timeout, NewStatic(), sources...)
}

// Names configured sources in priority order, fallback last
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.sources)+1)
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return append(names, c.fallback.Name())
}

// Fetch tries each source until one yields at least one candidate
func (c *Chain) Fetch(ctx context.Context) Outcome {
	log := logger.GetLogger("source")
	var out Outcome

	for _, s := range c.sources {
		if ctx.Err() != nil {
			break
		}
		att, res := c.try(ctx, s)
		out.Attempts = append(out.Attempts, att)

		switch att.Status {
		case StatusData:
			log.Infof("%s: %d notices (%d rejected) in %s", s.Name(), att.Count, att.Rejected, att.Duration)
			out.Source = s.Name()
			out.Candidates = res.Candidates
			out.Rejected = res.Rejected
			return out
		case StatusEmpty:
			log.Warnf("%s: no notices, falling back", s.Name())
		default:
			log.Warnf("%s failed, falling back: %v", s.Name(), att.Err)
		}
	}

	// static data needs no deadline and must survive a cancelled run context
	res, _ := c.fallback.Fetch(context.WithoutCancel(ctx))
	out.Attempts = append(out.Attempts, Attempt{
		Source:   c.fallback.Name(),
		Status:   StatusData,
		Count:    len(res.Candidates),
		Rejected: res.Rejected,
	})
	out.Source = c.fallback.Name()
	out.Candidates = res.Candidates
	out.Rejected = res.Rejected
	log.Infof("using %s: %d notices", out.Source, len(out.Candidates))
	return out
}

func (c *Chain) try(ctx context.Context, s Source) (Attempt, normalize.Result) {
	start := time.Now()
	fetchCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, err := s.Fetch(fetchCtx)
	att := Attempt{
		Source:   s.Name(),
		Count:    len(res.Candidates),
		Rejected: res.Rejected,
		Duration: time.Since(start),
	}
	switch {
	case err != nil && !errors.Is(err, ErrEmpty):
		att.Status = StatusFailed
		att.Err = err
		res = normalize.Result{}
		att.Count = 0
	case err != nil || len(res.Candidates) == 0:
		att.Status = StatusEmpty
	default:
		att.Status = StatusData
	}
	return att, res
}

// get issues a GET and returns the body of a 2xx response
func get(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", "varsly/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

const maxBody = 32 << 20
