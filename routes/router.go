package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/postdesk/config"
	"github.com/cppla/postdesk/controllers"
	"github.com/cppla/postdesk/middleware"
	"github.com/cppla/postdesk/store"
	"github.com/cppla/postdesk/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, s *store.Store) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok", "unsaved": s.Dirty()})
	})

	authController := controllers.NewAuthController(cfg)
	postController := controllers.NewPostController(s, utils.Logger)
	statsController := controllers.NewStatsController(s)
	configController := controllers.NewConfigController(s, utils.Logger)

	adminOnly := middleware.AdminRequired(cfg.JWTSecret)
	limiter := middleware.RateLimitMiddleware(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(limiter)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", adminOnly, authController.Logout)

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPosts)
	postsGroup.GET("/recent", postController.RecentPosts)
	postsGroup.GET("/:id", postController.GetPost)

	api.GET("/stats", statsController.GetStats)
	api.GET("/categories", statsController.GetCategories)
	api.GET("/settings", configController.GetSettings)
	api.GET("/preferences/pagination", configController.GetPagination)

	protected := api.Group("")
	protected.Use(adminOnly, limiter)
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.PATCH("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/restore", postController.RestorePost)
	protected.POST("/upload", postController.UploadImage)
	protected.PUT("/preferences/pagination", configController.PutPagination)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
