package store

import (
	"time"

	"github.com/cppla/postdesk/models"
)

// DefaultSeed is the collection a fresh installation starts with.
func DefaultSeed(time.Time) []models.Post {
	image := "https://via.placeholder.com/800x400"
	placeholder := image
	return []models.Post{
		{
			ID:          "1",
			Title:       "Getting Started with React",
			Description: "Learn the basics of React",
			Content:     "This is a sample blog post content...",
			Category:    "Technology",
			Author:      "Admin User",
			Image:       &image,
			PublishDate: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
			Status:      models.StatusPublished,
		},
		{
			ID:          "2",
			Title:       "Business Trends 2025",
			Description: "Top business trends to watch",
			Content:     "Key business insights for the upcoming year...",
			Category:    "Business",
			Author:      "Admin User",
			Image:       &placeholder,
			PublishDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Status:      models.StatusDraft,
		},
	}
}
