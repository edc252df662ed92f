package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/postdesk/models"
	"github.com/cppla/postdesk/store"
	"github.com/cppla/postdesk/utils"
)

// StatsController provides dashboard statistics.
type StatsController struct {
	store *store.Store
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(s *store.Store) *StatsController {
	return &StatsController{store: s}
}

// GetStats returns post counts. total includes soft-deleted posts still in
// their recovery window; published and draft count visible posts only.
func (s *StatsController) GetStats(ctx *gin.Context) {
	c := s.store.Counts()
	utils.Success(ctx, gin.H{
		"total":     c.Total,
		"published": c.Published,
		"draft":     c.Draft,
		"unsaved":   s.store.Dirty(),
	})
}

// GetCategories returns the categories in use plus the editor's suggestions.
func (s *StatsController) GetCategories(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"categories": s.store.Categories(),
		"suggested":  models.SuggestedCategories,
	})
}
