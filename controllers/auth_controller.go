package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postdesk/config"
	"github.com/cppla/postdesk/middleware"
	"github.com/cppla/postdesk/utils"
)

// AuthController signs the single administrator in and out.
type AuthController struct {
	cfg config.AppConfig
}

func NewAuthController(cfg config.AppConfig) *AuthController {
	return &AuthController{cfg: cfg}
}

// Login verifies the admin credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if !a.cfg.AuthEnabled() {
		utils.Error(ctx, http.StatusBadRequest, 40004, "authentication is not enabled")
		return
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	if !utils.CheckAdminLogin(req.Username, req.Password, a.cfg.AdminUsername, a.cfg.AdminPasswordHash) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, expiresAt, err := utils.GenerateToken(a.cfg.JWTSecret, req.Username, time.Duration(a.cfg.TokenTTLHours)*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"username":   req.Username,
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claimsVal, ok := ctx.Get(middleware.ContextClaimsKey)
	claims, _ := claimsVal.(*utils.Claims)
	if token == "" || !ok || claims == nil {
		// open local mode: nothing to revoke
		utils.Success(ctx, gin.H{"message": "logged out"})
		return
	}

	expiresAt := time.Now().Add(time.Duration(a.cfg.TokenTTLHours) * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}
