package models

import "time"

// Status is the publication state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// SuggestedCategories are offered by the editor but never enforced.
var SuggestedCategories = []string{"Technology", "Business", "Lifestyle", "Travel", "Food"}

// Post is a short-form article managed by the record store.
// DeletedAt is non-nil exactly when Deleted is true.
type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Category    string     `json:"category"`
	Author      string     `json:"author"`
	Image       *string    `json:"image"`
	PublishDate time.Time  `json:"publishDate"`
	Status      Status     `json:"status"`
	Deleted     bool       `json:"deleted"`
	DeletedAt   *time.Time `json:"deletedAt"`
}

// PostFields carries a whole or partial set of editable fields.
// A nil pointer means "leave unchanged"; id and the deletion pair are not editable.
type PostFields struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Content     *string    `json:"content,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Author      *string    `json:"author,omitempty"`
	Image       *string    `json:"image,omitempty"`
	PublishDate *time.Time `json:"publishDate,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	// ClearImage drops the current image; it wins over Image.
	ClearImage bool `json:"clearImage,omitempty"`
}

// Apply merges the present fields into p.
func (f PostFields) Apply(p *Post) {
	if f.Title != nil {
		p.Title = *f.Title
	}
	if f.Description != nil {
		p.Description = *f.Description
	}
	if f.Content != nil {
		p.Content = *f.Content
	}
	if f.Category != nil {
		p.Category = *f.Category
	}
	if f.Author != nil {
		p.Author = *f.Author
	}
	if f.ClearImage {
		p.Image = nil
	} else if f.Image != nil {
		img := *f.Image
		p.Image = &img
	}
	if f.PublishDate != nil {
		p.PublishDate = *f.PublishDate
	}
	if f.Status != nil {
		p.Status = *f.Status
	}
}

// Clone returns a deep copy so callers never share pointers with the store.
func (p Post) Clone() Post {
	if p.Image != nil {
		img := *p.Image
		p.Image = &img
	}
	if p.DeletedAt != nil {
		at := *p.DeletedAt
		p.DeletedAt = &at
	}
	return p
}

// SortBy names an ordering of a query result.
type SortBy string

const (
	SortNewest    SortBy = "newest"
	SortOldest    SortBy = "oldest"
	SortTitleAsc  SortBy = "title-asc"
	SortTitleDesc SortBy = "title-desc"
)

// Filters narrows and orders the visible collection. Empty fields mean no constraint.
type Filters struct {
	Category string `json:"category"`
	Status   Status `json:"status"`
	SortBy   SortBy `json:"sortBy"`
}

// DefaultFilters mirrors the list view's reset state.
func DefaultFilters() Filters {
	return Filters{SortBy: SortNewest}
}

// Counts summarises the collection for the dashboard.
type Counts struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Draft     int `json:"draft"`
}

// PaginationPrefs is the persisted page position of the list view.
type PaginationPrefs struct {
	Page int `json:"page"`
	Size int `json:"size"`
}
