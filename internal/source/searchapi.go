package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ToffenYT/varsly/internal/normalize"
)

const searchPath = "/api/v2/notice/notices/search-esentool"

// SearchAPI authenticated Doffin notice search
type SearchAPI struct {
	client   *http.Client
	baseURL  string
	key      string
	window   time.Duration
	pageSize int
	status   string
	now      func() time.Time
}

// SearchOption configures SearchAPI
type SearchOption func(*SearchAPI)

// WithWindow trailing publication window, default 30 days
func WithWindow(d time.Duration) SearchOption {
	return func(s *SearchAPI) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithPageSize notices requested per call, default 200
func WithPageSize(n int) SearchOption {
	return func(s *SearchAPI) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithStatus notice status filter, default SUBMITTED
func WithStatus(status string) SearchOption {
	return func(s *SearchAPI) {
		if status != "" {
			s.status = status
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) SearchOption {
	return func(s *SearchAPI) { s.now = now }
}

// NewSearchAPI creates the search source
func NewSearchAPI(client *http.Client, baseURL, subscriptionKey string, opts ...SearchOption) *SearchAPI {
	s := &SearchAPI{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		key:      subscriptionKey,
		window:   30 * 24 * time.Hour,
		pageSize: 200,
		status:   "SUBMITTED",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SearchAPI) Name() string { return "doffin_search" }

// Fetch first page of notices published within the window
func (s *SearchAPI) Fetch(ctx context.Context) (normalize.Result, error) {
	params := url.Values{}
	params.Set("publishedAfter", s.now().Add(-s.window).UTC().Format("2006-01-02T15:04:05.000Z"))
	params.Set("statuses", s.status)
	params.Set("size", strconv.Itoa(s.pageSize))
	params.Set("page", "0")

	header := http.Header{}
	header.Set("Ocp-Apim-Subscription-Key", s.key)
	header.Set("Accept", "application/json")

	body, err := get(ctx, s.client, s.baseURL+searchPath+"?"+params.Encode(), header)
	if err != nil {
		return normalize.Result{}, fmt.Errorf("doffin search: %w", err)
	}

	doc, err := decodeObject(body)
	if err != nil {
		return normalize.Result{}, fmt.Errorf("doffin search: %w", err)
	}

	list := normalize.ExtractList(doc, "content", "notices", "items", "results")
	if len(list) == 0 {
		return normalize.Result{}, ErrEmpty
	}
	return normalize.Records(list, &normalize.SearchAPI), nil
}

func decodeObject(body []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc, nil
}
