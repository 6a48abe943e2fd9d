// Package normalize turns source-specific notice records into models.TenderCandidate.
//
// Each source shape has a Table of ordered synonyms per canonical field. The
// first synonym that resolves to a usable value wins; a record without a title
// is rejected and every other field falls back to a default.
package normalize

import "github.com/ToffenYT/varsly/pkg/models"

// Table ordered synonyms per canonical field for one source shape
type Table struct {
	Name         string
	Title        []string
	Organization []string
	Location     []string
	Deadline     []string
	URL          []string
	Category     []string

	// ID, when resolved, yields URL = NoticeURLPrefix + id and takes precedence over URL synonyms
	ID              []string
	NoticeURLPrefix string

	DefaultURL string
}

// SearchAPI authenticated Doffin search API notices
var SearchAPI = Table{
	Name:            "search_api",
	Title:           []string{"title", "noticeTitle", "title_no", "name", "subject", "contractTitle", "title_en"},
	Organization:    []string{"noticeAuthor", "author", "buyer", "organisation", "organization", "oppdragsgiver"},
	Location:        []string{"location", "placeOfPerformance", "region", "sted"},
	Deadline:        []string{"responseDeadline", "deadline", "frist", "responseDate", "deadlineDate", "submissionDeadline"},
	URL:             []string{"url", "link", "noticeUrl"},
	Category:        []string{"cpv", "category", "contractType", "type"},
	ID:              []string{"id", "noticeId", "notice_id"},
	NoticeURLPrefix: "https://www.doffin.no/Notice/",
	DefaultURL:      "https://www.doffin.no",
}

// JSONFeed generic JSON API; records are expected in canonical shape already
var JSONFeed = Table{
	Name:         "json_api",
	Title:        []string{"title", "tittel", "noticeTitle", "name", "subject"},
	Organization: []string{"organization", "organisation", "oppdragsgiver", "buyer"},
	Location:     []string{"location", "sted", "region"},
	Deadline:     []string{"deadline", "frist", "responseDeadline"},
	URL:          []string{"url", "link", "noticeUrl"},
	Category:     []string{"category", "cpv", "type"},
	DefaultURL:   "https://www.doffin.no/Notice",
}

// CSVFeed delimited export; header names are matched lower-cased
var CSVFeed = Table{
	Name:         "csv",
	Title:        []string{"tittel", "title", "title_no", "name", "subject"},
	Organization: []string{"oppdragsgiver", "buyer", "buyer_name", "organization", "organisation"},
	Location:     []string{"sted", "location", "region"},
	Deadline:     []string{"frist", "deadline", "response_deadline", "date"},
	URL:          []string{"url", "link", "notice_url", "doffin_url", "notice_link"},
	Category:     []string{"cpv", "category", "type", "kontraktstype"},
	DefaultURL:   "https://www.doffin.no/Notice",
}

// Result normalized candidates plus the number of records dropped for lack of a title
type Result struct {
	Candidates []models.TenderCandidate
	Rejected   int
}
