package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ToffenYT/varsly/pkg/models"
)

// Record normalizes one JSON object. ok is false when no title synonym resolves.
func Record(raw map[string]interface{}, t *Table) (models.TenderCandidate, bool) {
	title := resolve(raw, t.Title)
	if title == "" {
		return models.TenderCandidate{}, false
	}

	url := ""
	if t.NoticeURLPrefix != "" {
		if id := resolveID(raw, t.ID); id != "" {
			url = t.NoticeURLPrefix + id
		}
	}
	if url == "" {
		url = resolve(raw, t.URL)
	}

	return models.TenderCandidate{
		Title:        title,
		Organization: orDefault(resolve(raw, t.Organization), models.DefaultOrganization),
		Location:     resolve(raw, t.Location),
		Deadline:     resolve(raw, t.Deadline),
		URL:          orDefault(url, t.DefaultURL),
		Category:     resolve(raw, t.Category),
	}, true
}

// Records normalizes a batch, counting rejects
func Records(raws []map[string]interface{}, t *Table) Result {
	var res Result
	for _, raw := range raws {
		c, ok := Record(raw, t)
		if !ok {
			res.Rejected++
			continue
		}
		res.Candidates = append(res.Candidates, c)
	}
	return res
}

// ExtractList returns the first array found under keys, as objects.
// Non-object elements are skipped.
func ExtractList(doc map[string]interface{}, keys ...string) []map[string]interface{} {
	for _, k := range keys {
		v, ok := doc[k]
		if !ok || v == nil {
			continue
		}
		arr, ok := v.([]interface{})
		if !ok {
			continue
		}
		list := make([]map[string]interface{}, 0, len(arr))
		for _, item := range arr {
			if m, ok := item.(map[string]interface{}); ok {
				list = append(list, m)
			}
		}
		return list
	}
	return nil
}

// resolve first synonym holding a non-empty string, or an object with a non-empty "value"
func resolve(raw map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s := stringValue(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

// resolveID like resolve but also accepts numbers, which is how most APIs send ids
func resolveID(raw map[string]interface{}, keys []string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			if s := stringValue(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]interface{}:
		inner, ok := val["value"]
		if !ok || inner == nil {
			return ""
		}
		if s, ok := inner.(string); ok {
			return strings.TrimSpace(s)
		}
		return strings.TrimSpace(fmt.Sprint(inner))
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
