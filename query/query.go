// Package query derives read-only views of the post collection: filtered and
// sorted results, and bounded pages over them.
package query

import (
	"slices"
	"strings"

	"github.com/cppla/postdesk/models"
)

// Query returns the visible posts matching searchTerm and filters, ordered by
// filters.SortBy. The input slice is never modified.
func Query(records []models.Post, searchTerm string, filters models.Filters) []models.Post {
	term := strings.ToLower(searchTerm)
	out := make([]models.Post, 0, len(records))
	for _, p := range records {
		if p.Deleted {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Title), term) &&
			!strings.Contains(strings.ToLower(p.Author), term) {
			continue
		}
		if filters.Category != "" && p.Category != filters.Category {
			continue
		}
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		out = append(out, p.Clone())
	}

	if cmp := comparator(filters.SortBy); cmp != nil {
		slices.SortStableFunc(out, cmp)
	}
	return out
}

// comparator returns nil for unknown orderings, which keep input order.
func comparator(sortBy models.SortBy) func(a, b models.Post) int {
	switch sortBy {
	case models.SortNewest:
		return func(a, b models.Post) int { return b.PublishDate.Compare(a.PublishDate) }
	case models.SortOldest:
		return func(a, b models.Post) int { return a.PublishDate.Compare(b.PublishDate) }
	case models.SortTitleAsc:
		return func(a, b models.Post) int { return strings.Compare(a.Title, b.Title) }
	case models.SortTitleDesc:
		return func(a, b models.Post) int { return strings.Compare(b.Title, a.Title) }
	default:
		return nil
	}
}

// IsKnownSort reports whether s names one of the supported orderings.
func IsKnownSort(s models.SortBy) bool {
	return comparator(s) != nil
}
