package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/postdesk/config"
	"github.com/cppla/postdesk/models"
	"github.com/cppla/postdesk/query"
	"github.com/cppla/postdesk/store"
	"github.com/cppla/postdesk/utils"
)

// ConfigController serves UI settings and the persisted list position.
type ConfigController struct {
	store *store.Store
	log   *zap.Logger
}

func NewConfigController(s *store.Store, log *zap.Logger) *ConfigController {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConfigController{store: s, log: log}
}

// GetSettings returns client-facing settings from the current configuration.
func (c *ConfigController) GetSettings(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"search_debounce_ms":   cfg.SearchDebounceMs,
		"page_size_choices":    query.PageSizeChoices,
		"default_page_size":    query.DefaultPageSize,
		"suggested_categories": models.SuggestedCategories,
		"default_author":       cfg.DefaultAuthor,
		"retention_days":       cfg.RetentionDays,
		"auth_enabled":         cfg.AuthEnabled(),
	})
}

// GetPagination returns the saved page position.
func (c *ConfigController) GetPagination(ctx *gin.Context) {
	prefs, err := c.store.Pagination(ctx.Request.Context())
	if err != nil {
		c.log.Warn("load pagination prefs failed", zap.Error(err))
	}
	utils.Success(ctx, prefs)
}

// PutPagination saves the page position.
func (c *ConfigController) PutPagination(ctx *gin.Context) {
	var prefs models.PaginationPrefs
	if err := ctx.ShouldBindJSON(&prefs); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if err := c.store.SavePagination(ctx.Request.Context(), prefs); err != nil {
		respondError(ctx, c.log, err, nil)
		return
	}
	if prefs.Page < 1 {
		prefs.Page = 1
	}
	utils.Success(ctx, prefs)
}
