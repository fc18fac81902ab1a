package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kelvinguchu/galacticelectricals/config"
	"github.com/kelvinguchu/galacticelectricals/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jwtCfg() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "test-access",
		RefreshSecret: "test-refresh",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "test",
	}
}

func authedRouter(cfg *config.JWTConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", AuthRequired(cfg), func(c *gin.Context) {
		c.JSON(200, gin.H{"user_id": GetUserID(c), "role": GetRole(c)})
	})
	r.GET("/admin", AuthRequired(cfg), RequireRole("admin"), func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/open", AuthOptional(cfg), func(c *gin.Context) {
		c.JSON(200, gin.H{"user_id": GetUserID(c)})
	})
	return r
}

func get(r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	cfg := jwtCfg()
	r := authedRouter(cfg)

	token, err := auth.GenerateAccessToken(cfg, 42, "jane@example.com", "customer")
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		w := get(r, "/private", "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":42`)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get(r, "/private", "").Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get(r, "/private", "Token abc").Code)
	})

	t.Run("tampered token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get(r, "/private", "Bearer "+token+"x").Code)
	})

	t.Run("expired token", func(t *testing.T) {
		short := jwtCfg()
		short.AccessExpiry = -time.Minute
		expired, err := auth.GenerateAccessToken(short, 42, "jane@example.com", "customer")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, get(r, "/private", "Bearer "+expired).Code)
	})
}

func TestRequireRole(t *testing.T) {
	cfg := jwtCfg()
	r := authedRouter(cfg)

	adminToken, _ := auth.GenerateAccessToken(cfg, 1, "admin@example.com", "admin")
	customerToken, _ := auth.GenerateAccessToken(cfg, 2, "jane@example.com", "customer")

	assert.Equal(t, http.StatusOK, get(r, "/admin", "Bearer "+adminToken).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/admin", "Bearer "+customerToken).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", "").Code)
}

func TestAuthOptional(t *testing.T) {
	cfg := jwtCfg()
	r := authedRouter(cfg)

	t.Run("guest passes through", func(t *testing.T) {
		w := get(r, "/open", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":0`)
	})

	t.Run("bad token is ignored, not rejected", func(t *testing.T) {
		w := get(r, "/open", "Bearer garbage")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":0`)
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		token, _ := auth.GenerateAccessToken(cfg, 7, "jane@example.com", "customer")
		w := get(r, "/open", "Bearer "+token)
		assert.Contains(t, w.Body.String(), `"user_id":7`)
	})
}
