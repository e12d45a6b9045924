package records

import (
	"strings"

	"github.com/dimitrije/passkeep/internal/models"
)

// Search returns the records whose title, username or url contain term as
// typed, ignoring case. Only the empty term matches everything. The input
// order is kept.
func Search(all []models.Record, term string) []models.Record {
	if term == "" {
		return all
	}
	needle := strings.ToLower(term)

	out := make([]models.Record, 0, len(all))
	for _, r := range all {
		if matches(r, needle) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r models.Record, needle string) bool {
	if strings.Contains(strings.ToLower(r.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Username), needle) {
		return true
	}
	return r.URL != nil && strings.Contains(strings.ToLower(*r.URL), needle)
}
