package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/irfndi/cyclescope-go/internal/config"
)

const adminRole = "admin"

// AdminClaims carries the JWT claims of an admin session token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth exchanges a bcrypt-verified admin key for short-lived HS256
// session tokens and guards admin routes with them.
type AdminAuth struct {
	keyHash   []byte
	jwtSecret []byte
	expiry    time.Duration
}

// NewAdminAuth builds the guard from security configuration. Missing hash
// or secret surfaces as a request-time error, so a server without admin
// credentials still starts.
func NewAdminAuth(cfg config.SecurityConfig) *AdminAuth {
	return &AdminAuth{
		keyHash:   []byte(cfg.AdminKeyHash),
		jwtSecret: []byte(cfg.JWTSecret),
		expiry:    cfg.JWTExpiryDuration(),
	}
}

// IssueToken verifies the presented admin key against the configured bcrypt
// hash and returns a signed session token with its expiry.
func (aa *AdminAuth) IssueToken(adminKey string) (string, time.Time, error) {
	if len(aa.keyHash) == 0 {
		return "", time.Time{}, errors.New("admin key hash is not configured")
	}
	if len(aa.jwtSecret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	if err := bcrypt.CompareHashAndPassword(aa.keyHash, []byte(adminKey)); err != nil {
		return "", time.Time{}, fmt.Errorf("invalid admin key: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(aa.expiry)
	claims := &AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminRole,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(aa.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses a session token and returns its claims.
func (aa *AdminAuth) ValidateToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return aa.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid || claims.Role != adminRole {
		return nil, errors.New("invalid admin token")
	}
	return claims, nil
}

// RequireAdminAuth validates the Bearer session token on admin routes.
func (aa *AdminAuth) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Bearer scheme is case-insensitive per RFC 6750.
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := aa.ValidateToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
