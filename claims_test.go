package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/sessionworks/go-auth"
	"github.com/stretchr/testify/assert"
)

func TestAccessClaims(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	claims := &auth.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "subject-id",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID:       "user-id",
		SessionID: "session-id",
		UserRole:  auth.RoleAdmin,
	}

	assert.Equal(t, "user-id", claims.UserID())
	assert.Equal(t, auth.RoleAdmin, claims.Role())
	assert.Equal(t, now, claims.IssuedAt())
	assert.Equal(t, now.Add(time.Hour), claims.Expires())
}

func TestAccessClaimsSubjectFallback(t *testing.T) {
	claims := &auth.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "subject-id"},
	}

	assert.Equal(t, "subject-id", claims.UserID())
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
}
