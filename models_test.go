package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusAuthError(t *testing.T) {
	assert.NoError(t, statusAuthError(UserStatusActive))
	assert.NoError(t, statusAuthError(""))

	assert.Equal(t, CodeUserSuspended, CodeOf(statusAuthError(UserStatusSuspended)))
	assert.Equal(t, CodeUserNotActive, CodeOf(statusAuthError(UserStatusPending)))
	assert.Equal(t, CodeUserNotActive, CodeOf(statusAuthError(UserStatusDisabled)))
	assert.Equal(t, CodeUserNotActive, CodeOf(statusAuthError(UserStatusArchived)))
}

func TestUserEnsureStatus(t *testing.T) {
	u := &User{}
	u.EnsureStatus()
	assert.Equal(t, UserStatusActive, u.Status)

	u = &User{Status: UserStatusSuspended}
	u.EnsureStatus()
	assert.Equal(t, UserStatusSuspended, u.Status)
}

func TestSessionIsActive(t *testing.T) {
	now := time.Now()

	session := &Session{
		Status:    SessionStatusActive,
		ExpiresAt: now.Add(time.Hour),
	}
	assert.True(t, session.IsActive(now))
	assert.False(t, session.IsActive(now.Add(2*time.Hour)))

	session.Status = SessionStatusRevoked
	assert.False(t, session.IsActive(now))

	var nilSession *Session
	assert.False(t, nilSession.IsActive(now))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}
