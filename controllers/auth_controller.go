package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/farmqa/middleware"
	"github.com/cppla/farmqa/utils"
)

// AuthController handles session revocation. Tokens are issued by the account service.
type AuthController struct {
	blacklist *utils.TokenBlacklist
	logger    *zap.Logger
}

// NewAuthController creates an AuthController.
func NewAuthController(blacklist *utils.TokenBlacklist, logger *zap.Logger) *AuthController {
	return &AuthController{blacklist: blacklist, logger: logger}
}

// Logout revokes the presented token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	claims, ok := middleware.CurrentClaims(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, codeUnauthorized, "sign in required")
		return
	}
	expiresAt := time.Now().Add(72 * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := a.blacklist.Revoke(ctx.Request.Context(), claims.ID, expiresAt); err != nil {
		respondError(ctx, a.logger, err)
		return
	}
	a.logger.Info("token revoked", zap.Uint("user_id", claims.UserID))
	utils.Success(ctx, gin.H{"message": "logged out"})
}
