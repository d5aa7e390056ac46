// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"settlement-service/internal/pkg/jwt"
	"settlement-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	verifier *jwt.Verifier
}

func NewAuthMiddleware(verifier *jwt.Verifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Auth is the base authentication middleware that validates JWT tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the identity when a valid token is present but lets
// anonymous requests through. Used by the activation endpoint, which has to
// bounce anonymous visitors to login instead of rejecting them.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if claims, err := m.verifier.Verify(token); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// AdminOnly requires an authenticated caller carrying the admin role.
// MUST be used after Auth() middleware
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasRole(c, "admin") {
			response.Error(c, http.StatusForbidden, "administrator access required", nil)
			return
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *jwt.Claims) {
	c.Set("identity_id", claims.IdentityID)
	c.Set("email", claims.Email)
	c.Set("roles", claims.Roles)
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	// Browser flows (activation links) carry the token as a cookie.
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}

	return ""
}
