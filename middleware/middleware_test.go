package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/farmqa/config"
	"github.com/cppla/farmqa/forum"
	"github.com/cppla/farmqa/utils"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T, blacklist *utils.TokenBlacklist) *gin.Engine {
	t.Helper()
	auth := NewAuthenticator(config.AppConfig{
		JWTSecret:       testSecret,
		AdminUsernames:  []string{"Root"},
		PrivilegedRoles: []string{"moderator"},
	}, blacklist)

	r := gin.New()
	echo := func(ctx *gin.Context) { ctx.JSON(http.StatusOK, CurrentIdentity(ctx)) }
	r.GET("/required", auth.AuthRequired(), echo)
	r.GET("/optional", auth.OptionalAuth(), echo)
	return r
}

func token(t *testing.T, claims utils.Claims) string {
	t.Helper()
	tok, err := utils.GenerateToken(testSecret, claims, time.Hour)
	require.NoError(t, err)
	return tok
}

func get(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeIdentity(t *testing.T, w *httptest.ResponseRecorder) forum.Identity {
	t.Helper()
	var id forum.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &id))
	return id
}

func TestAuthRequired(t *testing.T) {
	r := newAuthRouter(t, utils.NewTokenBlacklist(nil))

	w := get(r, "/required", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40101")

	w = get(r, "/required", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40102")

	w = get(r, "/required", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40105")

	w = get(r, "/required", "Bearer "+token(t, utils.Claims{UserID: 4, Username: "ravi", Name: "Ravi Kumar", Role: "farmer", Location: "Punjab"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, forum.Identity{UserID: 4, Name: "Ravi Kumar", Role: "farmer", Location: "Punjab"}, decodeIdentity(t, w))
}

func TestAuthPrivilege(t *testing.T) {
	r := newAuthRouter(t, nil)

	w := get(r, "/required", "Bearer "+token(t, utils.Claims{UserID: 1, Username: "root"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeIdentity(t, w).Privileged, "admin usernames are case insensitive")

	w = get(r, "/required", "Bearer "+token(t, utils.Claims{UserID: 2, Username: "mod", Role: "Moderator"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeIdentity(t, w).Privileged)

	w = get(r, "/required", "Bearer "+token(t, utils.Claims{UserID: 3, Username: "farmer", Role: "farmer"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeIdentity(t, w).Privileged)
}

func TestOptionalAuth(t *testing.T) {
	r := newAuthRouter(t, nil)

	w := get(r, "/optional", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeIdentity(t, w).Authenticated())

	w = get(r, "/optional", "Bearer "+token(t, utils.Claims{UserID: 5, Username: "meena"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 5, decodeIdentity(t, w).UserID)

	w = get(r, "/optional", "Bearer broken")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRevokedTokenRejected(t *testing.T) {
	blacklist := utils.NewTokenBlacklist(nil)
	r := newAuthRouter(t, blacklist)
	tok := token(t, utils.Claims{UserID: 4, Username: "ravi"})

	claims, err := utils.ParseToken(testSecret, tok)
	require.NoError(t, err)
	require.NoError(t, blacklist.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time))

	w := get(r, "/required", "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40104")
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(4)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	// burst of two, then one token every 15s
	assert.Equal(t, http.StatusNoContent, get(r, "/", "").Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/", "").Code)

	now = now.Add(15 * time.Second)
	assert.Equal(t, http.StatusNoContent, get(r, "/", "").Code)
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(60)
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	now := t0
	limiter.now = func() time.Time { return now }

	limiter.allow("10.0.0.1")

	now = t0.Add(4*time.Minute + 30*time.Second)
	limiter.allow("10.0.0.2")
	assert.Len(t, limiter.clients, 2)

	// 10.0.0.1 has gone idle, but the last sweep was under a minute ago.
	now = t0.Add(5*time.Minute + 10*time.Second)
	limiter.allow("10.0.0.3")
	assert.Len(t, limiter.clients, 3)

	now = t0.Add(5*time.Minute + 40*time.Second)
	limiter.allow("10.0.0.3")
	assert.Len(t, limiter.clients, 2)
	assert.NotContains(t, limiter.clients, "10.0.0.1")
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(ctx *gin.Context) { ctx.String(http.StatusOK, ctx.GetString(ContextRequestIDKey)) })

	w := get(r, "/", "")
	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "7b0e2c3a-3f1e-4c55-9d43-2a7f1c0f9e11")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "7b0e2c3a-3f1e-4c55-9d43-2a7f1c0f9e11", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
}
