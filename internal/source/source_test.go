package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToffenYT/varsly/internal/config"
	"github.com/ToffenYT/varsly/internal/normalize"
)

func jsonServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchAPIRequest(t *testing.T) {
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = w.Write([]byte(`{"content":[{"id":"2025-1","title":"Asfalt"}]}`))
	}))
	defer srv.Close()

	s := NewSearchAPI(srv.Client(), srv.URL+"/", "secret", WithClock(func() time.Time { return now }))
	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "https://www.doffin.no/Notice/2025-1", res.Candidates[0].URL)

	require.NotNil(t, got)
	assert.Equal(t, searchPath, got.URL.Path)
	assert.Equal(t, "secret", got.Header.Get("Ocp-Apim-Subscription-Key"))
	q := got.URL.Query()
	assert.Equal(t, "2025-03-01T12:00:00.000Z", q.Get("publishedAfter"))
	assert.Equal(t, "SUBMITTED", q.Get("statuses"))
	assert.Equal(t, "200", q.Get("size"))
	assert.Equal(t, "0", q.Get("page"))
}

func TestSearchAPIEmptyAndError(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"content":[]}`, nil)
	_, err := NewSearchAPI(srv.Client(), srv.URL, "k").Fetch(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)

	srv = jsonServer(t, http.StatusUnauthorized, `{"error":"denied"}`, nil)
	_, err = NewSearchAPI(srv.Client(), srv.URL, "k").Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmpty)
}

func TestJSONFeedTendersKey(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"tenders":[{"title":"Renhold","organization":"Oslo kommune","deadline":"1. juni"}]}`, nil)
	res, err := NewJSONFeed(srv.Client(), srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "Oslo kommune", res.Candidates[0].Organization)
	assert.Equal(t, "1. juni", res.Candidates[0].Deadline)
}

func TestCSVFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tittel;oppdragsgiver\nVeilys;Bergen kommune\n"))
	}))
	defer srv.Close()

	res, err := NewCSVFeed(srv.Client(), srv.URL, 0).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "Veilys", res.Candidates[0].Title)
}

func TestChainFallsBackWhenSearchAPIEmpty(t *testing.T) {
	var searchHits, jsonHits int32
	search := jsonServer(t, http.StatusOK, `{"content":[]}`, &searchHits)
	feed := jsonServer(t, http.StatusOK, `{"items":[{"title":"Asfaltering av vei"}]}`, &jsonHits)

	chain := NewChain(5*time.Second, nil,
		NewSearchAPI(search.Client(), search.URL, "k"),
		NewJSONFeed(feed.Client(), feed.URL),
	)
	out := chain.Fetch(context.Background())

	assert.Equal(t, int32(1), atomic.LoadInt32(&searchHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&jsonHits))
	assert.Equal(t, "json_api", out.Source)
	require.Len(t, out.Candidates, 1)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, StatusEmpty, out.Attempts[0].Status)
	assert.Equal(t, StatusData, out.Attempts[1].Status)
}

func TestChainAllRejectedCountsAsEmpty(t *testing.T) {
	feed := jsonServer(t, http.StatusOK, `{"items":[{"buyer":"no title"}]}`, nil)
	out := NewChain(time.Second, nil, NewJSONFeed(feed.Client(), feed.URL)).Fetch(context.Background())

	assert.Equal(t, "static", out.Source)
	assert.Equal(t, StatusEmpty, out.Attempts[0].Status)
	assert.Equal(t, 1, out.Attempts[0].Rejected)
}

func TestChainTimeoutFallsThrough(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	csv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("title\nBrøyting\n"))
	}))
	defer csv.Close()

	chain := NewChain(50*time.Millisecond, nil,
		NewJSONFeed(slow.Client(), slow.URL),
		NewCSVFeed(csv.Client(), csv.URL, 400),
	)
	out := chain.Fetch(context.Background())

	assert.Equal(t, "csv", out.Source)
	assert.Equal(t, StatusFailed, out.Attempts[0].Status)
	assert.True(t, errors.Is(out.Attempts[0].Err, context.DeadlineExceeded))
}

func TestChainStaticWhenNothingConfigured(t *testing.T) {
	chain := FromConfig(&config.SourceConfig{Timeout: time.Second, CSVMaxRows: 400}, nil)
	assert.Equal(t, []string{"static"}, chain.Names())

	out := chain.Fetch(context.Background())
	assert.Equal(t, "static", out.Source)
	assert.Len(t, out.Candidates, 3)
	assert.Equal(t, "Trondheim kommune", out.Candidates[0].Organization)
}

func TestChainStaticAfterAllFail(t *testing.T) {
	broken := jsonServer(t, http.StatusInternalServerError, `oops`, nil)
	out := NewChain(time.Second, nil,
		NewSearchAPI(broken.Client(), broken.URL, "k"),
		NewJSONFeed(broken.Client(), broken.URL),
		NewCSVFeed(broken.Client(), broken.URL, 400),
	).Fetch(context.Background())

	assert.Equal(t, "static", out.Source)
	require.Len(t, out.Attempts, 4)
	for _, a := range out.Attempts[:3] {
		assert.Equal(t, StatusFailed, a.Status)
	}
}

func TestFromConfigOrder(t *testing.T) {
	chain := FromConfig(&config.SourceConfig{
		SubscriptionKey: "k",
		SearchBaseURL:   "https://api.doffin.no",
		JSONURL:         "https://example.no/tenders.json",
		CSVURL:          "https://example.no/tenders.csv",
		Timeout:         time.Second,
		CSVMaxRows:      400,
	}, nil)
	assert.Equal(t, []string{"doffin_search", "json_api", "csv", "static"}, chain.Names())
}

type stubSource struct {
	name string
	res  normalize.Result
	err  error
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) Fetch(context.Context) (normalize.Result, error) {
	return s.res, s.err
}

func TestChainCancelledContextStillReturnsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewChain(time.Second, nil, stubSource{name: "never", err: errors.New("unreachable")}).Fetch(ctx)
	assert.Equal(t, "static", out.Source)
	assert.Len(t, out.Attempts, 1)
}

// TestLiveSearchAPI hits the real Doffin API (network and DOFFIN_SUBSCRIPTION_KEY required)
func TestLiveSearchAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping live API test in short mode")
	}
	cfg, err := config.Load()
	require.NoError(t, err)
	if cfg.Sources.SubscriptionKey == "" {
		t.Skip("DOFFIN_SUBSCRIPTION_KEY not set")
	}

	s := NewSearchAPI(&http.Client{Timeout: 30 * time.Second}, cfg.Sources.SearchBaseURL, cfg.Sources.SubscriptionKey)
	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	t.Logf("Fetched %d notices (%d rejected)", len(res.Candidates), res.Rejected)
}
