// internal/pkg/jwt/claims.go
package jwt

import "github.com/golang-jwt/jwt/v5"

// Claims are the token claims issued by the account service. This service
// only verifies; it never mints tokens.
type Claims struct {
	IdentityID int64    `json:"identity_id"`
	Email      string   `json:"email,omitempty"`
	Roles      []string `json:"roles,omitempty"`

	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
