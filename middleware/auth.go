package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/farmqa/config"
	"github.com/cppla/farmqa/forum"
	"github.com/cppla/farmqa/utils"
)

const (
	// ContextIdentityKey stores the caller's forum.Identity inside the gin context.
	ContextIdentityKey = "identity"
	// ContextClaimsKey stores the parsed *utils.Claims.
	ContextClaimsKey = "claims"
)

// Authenticator turns bearer tokens into forum identities.
type Authenticator struct {
	secret     string
	blacklist  *utils.TokenBlacklist
	admins     map[string]struct{}
	privileged map[string]struct{}
}

// NewAuthenticator builds an Authenticator from the app config.
func NewAuthenticator(cfg config.AppConfig, blacklist *utils.TokenBlacklist) *Authenticator {
	a := &Authenticator{
		secret:     cfg.JWTSecret,
		blacklist:  blacklist,
		admins:     make(map[string]struct{}, len(cfg.AdminUsernames)),
		privileged: make(map[string]struct{}, len(cfg.PrivilegedRoles)),
	}
	for _, u := range cfg.AdminUsernames {
		a.admins[strings.ToLower(u)] = struct{}{}
	}
	for _, r := range cfg.PrivilegedRoles {
		a.privileged[strings.ToLower(r)] = struct{}{}
	}
	return a
}

// Identity derives the forum identity carried by claims.
func (a *Authenticator) Identity(claims *utils.Claims) forum.Identity {
	_, admin := a.admins[strings.ToLower(claims.Username)]
	_, role := a.privileged[strings.ToLower(claims.Role)]
	return forum.Identity{
		UserID:     claims.UserID,
		Name:       claims.DisplayName(),
		Role:       claims.Role,
		Location:   claims.Location,
		Privileged: admin || role,
	}
}

// AuthRequired rejects requests without a valid, unrevoked bearer token.
func (a *Authenticator) AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Abort(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			return
		}
		claims, code, msg := a.authenticate(ctx, authHeader)
		if claims == nil {
			utils.Abort(ctx, http.StatusUnauthorized, code, msg)
			return
		}
		a.attach(ctx, claims)
		ctx.Next()
	}
}

// OptionalAuth attaches an identity when a valid token is present and
// lets anonymous requests through. A bad token is still an error.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			ctx.Next()
			return
		}
		claims, code, msg := a.authenticate(ctx, authHeader)
		if claims == nil {
			utils.Abort(ctx, http.StatusUnauthorized, code, msg)
			return
		}
		a.attach(ctx, claims)
		ctx.Next()
	}
}

func (a *Authenticator) authenticate(ctx *gin.Context, header string) (*utils.Claims, int, string) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, 40102, "invalid authorization header format"
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, 40103, "empty bearer token"
	}
	claims, err := utils.ParseToken(a.secret, tokenString)
	if err != nil {
		return nil, 40105, "invalid token"
	}
	if a.blacklist != nil && a.blacklist.IsRevoked(ctx.Request.Context(), claims.ID) {
		return nil, 40104, "token revoked"
	}
	return claims, 0, ""
}

func (a *Authenticator) attach(ctx *gin.Context, claims *utils.Claims) {
	ctx.Set(ContextClaimsKey, claims)
	ctx.Set(ContextIdentityKey, a.Identity(claims))
}

// CurrentIdentity returns the caller's identity; the zero Identity is anonymous.
func CurrentIdentity(ctx *gin.Context) forum.Identity {
	if v, ok := ctx.Get(ContextIdentityKey); ok {
		if id, ok := v.(forum.Identity); ok {
			return id
		}
	}
	return forum.Identity{}
}

// CurrentClaims returns the parsed token claims, if any.
func CurrentClaims(ctx *gin.Context) (*utils.Claims, bool) {
	v, ok := ctx.Get(ContextClaimsKey)
	if !ok {
		return nil, false
	}
	c, ok := v.(*utils.Claims)
	return c, ok
}
