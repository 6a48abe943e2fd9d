package source

import (
	"context"

	"github.com/ToffenYT/varsly/internal/normalize"
	"github.com/ToffenYT/varsly/pkg/models"
)

// Static built-in sample notices, used when nothing else is configured or every source failed
type Static struct {
	notices []models.TenderCandidate
}

// NewStatic the default sample set
func NewStatic() *Static {
	return &Static{notices: []models.TenderCandidate{
		{
			Title:        "Asfaltering av kommunale veier 2025-2027",
			Organization: "Trondheim kommune",
			Location:     "Trøndelag",
			Deadline:     "15. mars 2025",
			URL:          "https://www.doffin.no/notice/example-1",
			Category:     "Vei og transport",
		},
		{
			Title:        "Vedlikehold av fylkesveier - Region Vest",
			Organization: "Vestland fylkeskommune",
			Location:     "Vestland",
			Deadline:     "22. mars 2025",
			URL:          "https://www.doffin.no/notice/example-2",
			Category:     "Vei og transport",
		},
		{
			Title:        "Snøbrøyting og vintervedlikehold 2025/2026",
			Organization: "Bærum kommune",
			Location:     "Viken",
			Deadline:     "1. april 2025",
			URL:          "https://www.doffin.no/notice/example-3",
			Category:     "Drift og vedlikehold",
		},
	}}
}

// NewStaticWith custom notices, mainly for tests and dry runs
func NewStaticWith(notices ...models.TenderCandidate) *Static {
	return &Static{notices: notices}
}

func (s *Static) Name() string { return "static" }

// Fetch never fails
func (s *Static) Fetch(context.Context) (normalize.Result, error) {
	out := make([]models.TenderCandidate, len(s.notices))
	copy(out, s.notices)
	return normalize.Result{Candidates: out}, nil
}
