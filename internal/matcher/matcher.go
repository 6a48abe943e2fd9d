// Package matcher decides whether a tender notice matches a subscriber keyword.
package matcher

import (
	"strings"

	"github.com/ToffenYT/varsly/pkg/models"
)

// Matches reports whether keyword occurs, case-insensitively, in the title,
// organization or category of c. An empty keyword never matches.
func Matches(c models.TenderCandidate, keyword string) bool {
	k := strings.ToLower(keyword)
	if k == "" {
		return false
	}
	return strings.Contains(strings.ToLower(c.Title), k) ||
		strings.Contains(strings.ToLower(c.Organization), k) ||
		strings.Contains(strings.ToLower(c.Category), k)
}
