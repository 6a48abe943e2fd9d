package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ToffenYT/varsly/internal/normalize"
)

// JSONFeed generic JSON endpoint returning {"items": [...]} or {"tenders": [...]}
type JSONFeed struct {
	client *http.Client
	url    string
}

// NewJSONFeed creates the JSON source
func NewJSONFeed(client *http.Client, url string) *JSONFeed {
	return &JSONFeed{client: client, url: url}
}

func (f *JSONFeed) Name() string { return "json_api" }

func (f *JSONFeed) Fetch(ctx context.Context) (normalize.Result, error) {
	body, err := get(ctx, f.client, f.url, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return normalize.Result{}, fmt.Errorf("json feed: %w", err)
	}
	doc, err := decodeObject(body)
	if err != nil {
		return normalize.Result{}, fmt.Errorf("json feed: %w", err)
	}

	list := normalize.ExtractList(doc, "items", "tenders")
	if len(list) == 0 {
		return normalize.Result{}, ErrEmpty
	}
	return normalize.Records(list, &normalize.JSONFeed), nil
}

// CSVFeed delimited export
type CSVFeed struct {
	client  *http.Client
	url     string
	maxRows int
}

// NewCSVFeed creates the CSV source; maxRows <= 0 means the default cap
func NewCSVFeed(client *http.Client, url string, maxRows int) *CSVFeed {
	return &CSVFeed{client: client, url: url, maxRows: maxRows}
}

func (f *CSVFeed) Name() string { return "csv" }

func (f *CSVFeed) Fetch(ctx context.Context) (normalize.Result, error) {
	body, err := get(ctx, f.client, f.url, http.Header{"Accept": []string{"text/csv, text/plain"}})
	if err != nil {
		return normalize.Result{}, fmt.Errorf("csv feed: %w", err)
	}
	return normalize.CSV(string(body), f.maxRows), nil
}
