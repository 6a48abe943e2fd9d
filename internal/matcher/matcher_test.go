package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ToffenYT/varsly/pkg/models"
)

func TestMatches(t *testing.T) {
	c := models.TenderCandidate{
		Title:        "Asfaltering av kommunale veier",
		Organization: "Trondheim kommune",
		Location:     "Trøndelag",
		Category:     "Vei og transport",
	}

	tests := []struct {
		name    string
		keyword string
		want    bool
	}{
		{"title lower", "asfalt", true},
		{"title upper", "ASFALT", true},
		{"organization", "trondheim", true},
		{"category", "transport", true},
		{"norwegian letters", "KOMMUNALE", true},
		{"location is not searched", "trøndelag", false},
		{"no match", "snøbrøyting", false},
		{"empty keyword", "", false},
		{"whole phrase", "av kommunale veier", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(c, tt.keyword))
		})
	}
}

func TestMatchesEmptyFields(t *testing.T) {
	assert.False(t, Matches(models.TenderCandidate{}, "a"))
	assert.True(t, Matches(models.TenderCandidate{Category: "Drift og vedlikehold"}, "vedlikehold"))
}
