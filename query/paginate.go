package query

import (
	"errors"

	"github.com/cppla/postdesk/models"
)

// PageSizeChoices are the sizes offered by the list view; any positive size is accepted.
var PageSizeChoices = []int{5, 10, 20}

// DefaultPageSize is used when the caller has no stored preference.
const DefaultPageSize = 10

// ErrInvalidPageSize is returned for a page size below 1.
var ErrInvalidPageSize = errors.New("page size must be a positive integer")

// Page is one slice of an ordered result.
type Page struct {
	Items      []models.Post `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
	HasNext    bool          `json:"has_next"`
	HasPrev    bool          `json:"has_prev"`
}

// TotalPages is never below 1, so an empty result still has a first page.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	pages := total / pageSize
	if total%pageSize > 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Paginate clamps page into [1, TotalPages] and returns the records on it.
func Paginate(records []models.Post, page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		return Page{}, ErrInvalidPageSize
	}
	total := len(records)
	totalPages := TotalPages(total, pageSize)
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	items := make([]models.Post, 0, end-start)
	items = append(items, records[start:end]...)

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}, nil
}
