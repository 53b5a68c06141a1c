package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/irfndi/cyclescope-go/internal/config"
)

const testAdminKey = "test-admin-key"

func testSecurityConfig(t *testing.T) config.SecurityConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	require.NoError(t, err)
	return config.SecurityConfig{
		AdminKeyHash: string(hash),
		JWTSecret:    "test-jwt-secret",
		JWTExpiry:    "1h",
		BcryptCost:   bcrypt.MinCost,
	}
}

func TestNewAdminAuth(t *testing.T) {
	aa := NewAdminAuth(testSecurityConfig(t))
	require.NotNil(t, aa)
	assert.Equal(t, time.Hour, aa.expiry)

	// Empty expiry falls back to a day.
	aa = NewAdminAuth(config.SecurityConfig{})
	assert.Equal(t, 24*time.Hour, aa.expiry)
}

func TestAdminAuth_IssueToken(t *testing.T) {
	aa := NewAdminAuth(testSecurityConfig(t))

	token, expiresAt, err := aa.IssueToken(testAdminKey)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	_, _, err = aa.IssueToken("wrong-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid admin key")
}

func TestAdminAuth_IssueTokenUnconfigured(t *testing.T) {
	_, _, err := NewAdminAuth(config.SecurityConfig{JWTSecret: "secret"}).IssueToken(testAdminKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin key hash is not configured")

	cfg := testSecurityConfig(t)
	cfg.JWTSecret = ""
	_, _, err = NewAdminAuth(cfg).IssueToken(testAdminKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret is not configured")
}

func TestAdminAuth_ValidateToken(t *testing.T) {
	aa := NewAdminAuth(testSecurityConfig(t))

	token, _, err := aa.IssueToken(testAdminKey)
	require.NoError(t, err)

	claims, err := aa.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "admin", claims.Subject)

	_, err = aa.ValidateToken(token + "tampered")
	assert.Error(t, err)

	other := NewAdminAuth(config.SecurityConfig{JWTSecret: "different-secret"})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestAdminAuth_ValidateTokenExpired(t *testing.T) {
	aa := NewAdminAuth(testSecurityConfig(t))
	aa.expiry = -time.Hour

	token, _, err := aa.IssueToken(testAdminKey)
	require.NoError(t, err)

	_, err = aa.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func adminTestRouter(aa *AdminAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/ping", aa.RequireAdminAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString("admin_subject")})
	})
	return router
}

func TestAdminAuth_RequireAdminAuth(t *testing.T) {
	aa := NewAdminAuth(testSecurityConfig(t))
	router := adminTestRouter(aa)

	token, _, err := aa.IssueToken(testAdminKey)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, "Invalid authorization header format"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "Invalid token"},
		{"valid token", "Bearer " + token, http.StatusOK, "admin"},
		{"case-insensitive scheme", "bearer " + token, http.StatusOK, "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestAdminAuth_RequireAdminAuthExpired(t *testing.T) {
	aa := NewAdminAuth(testSecurityConfig(t))
	aa.expiry = -time.Hour
	token, _, err := aa.IssueToken(testAdminKey)
	require.NoError(t, err)

	aa.expiry = time.Hour
	router := adminTestRouter(aa)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token expired")
}
