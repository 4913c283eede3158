package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the claim set carried by access tokens. Every token is
// bound to the session that produced it so revocation checks can key off
// the sid claim without a user lookup.
type AccessClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	SessionID string `json:"sid,omitempty"`
	UserRole  string `json:"role,omitempty"`
}

// UserID returns the user id, falling back to the subject claim.
func (c *AccessClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Role returns the role claim.
func (c *AccessClaims) Role() string {
	return c.UserRole
}

// Expires returns the expiration time
func (c *AccessClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *AccessClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = newUUIDString()
	}
}
