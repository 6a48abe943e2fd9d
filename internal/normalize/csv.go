package normalize

import (
	"regexp"
	"strings"

	"github.com/ToffenYT/varsly/pkg/models"
)

// DefaultMaxRows row cap for delimited feeds
const DefaultMaxRows = 400

var lineBreak = regexp.MustCompile(`\r?\n`)

// CSV parses a delimited export. The separator is ';' when the header line
// contains one, ',' otherwise. Quoted fields are not parsed as CSV quoting:
// one leading and one trailing double quote are stripped per cell, so a
// separator inside quotes splits the cell.
func CSV(text string, maxRows int) Result {
	var res Result
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	var lines []string
	for _, l := range lineBreak.Split(strings.TrimSpace(text), -1) {
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return res
	}

	sep := ","
	if strings.Contains(lines[0], ";") {
		sep = ";"
	}

	headers := splitRow(lines[0], sep)
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.ToLower(h)
		if _, seen := index[h]; !seen {
			index[h] = i
		}
	}

	get := func(row []string, keys []string) string {
		for _, k := range keys {
			i, ok := index[k]
			if !ok || i >= len(row) {
				continue
			}
			if row[i] != "" {
				return row[i]
			}
		}
		return ""
	}

	end := len(lines)
	if end > maxRows+1 {
		end = maxRows + 1
	}
	for _, line := range lines[1:end] {
		row := splitRow(line, sep)
		title := get(row, CSVFeed.Title)
		if title == "" {
			res.Rejected++
			continue
		}
		res.Candidates = append(res.Candidates, models.TenderCandidate{
			Title:        title,
			Organization: orDefault(get(row, CSVFeed.Organization), models.DefaultOrganization),
			Location:     get(row, CSVFeed.Location),
			Deadline:     get(row, CSVFeed.Deadline),
			URL:          orDefault(get(row, CSVFeed.URL), CSVFeed.DefaultURL),
			Category:     get(row, CSVFeed.Category),
		})
	}
	return res
}

func splitRow(line, sep string) []string {
	cells := strings.Split(line, sep)
	for i, c := range cells {
		cells[i] = stripQuotes(c)
	}
	return cells
}

// stripQuotes removes at most one leading and one trailing '"', then trims
func stripQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.TrimSpace(s)
}
