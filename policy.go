package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// SessionLimitBehavior selects what happens when a user hits maxPerUser.
type SessionLimitBehavior string

const (
	// LimitRejectNew refuses the new session with a capacity error.
	LimitRejectNew SessionLimitBehavior = "reject_new"
	// LimitPruneOldest evicts the least-recently-seen session to make room.
	LimitPruneOldest SessionLimitBehavior = "prune_oldest"
)

// TokenPolicies control token lifetimes and rotation.
type TokenPolicies struct {
	AccessTTLSeconds  int  `json:"accessTtlSec" env:"AUTH_ACCESS_TOKEN_TTL"`
	RefreshTTLSeconds int  `json:"refreshTtlSec" env:"AUTH_REFRESH_TOKEN_TTL"`
	RotateRefresh     bool `json:"rotateRefresh" env:"AUTH_ROTATE_REFRESH_TOKENS"`
}

// SessionPolicies control session creation, limits, and cleanup.
type SessionPolicies struct {
	MaxPerUser               int                  `json:"maxPerUser" env:"AUTH_MAX_SESSIONS_PER_USER"`
	AllowMultiPerDevice      bool                 `json:"allowMultiPerDevice" env:"AUTH_ALLOW_MULTI_PER_DEVICE"`
	InactivityTimeoutSeconds int                  `json:"inactivityTimeoutSec" env:"AUTH_SESSION_INACTIVITY_TIMEOUT"`
	LimitBehavior            SessionLimitBehavior `json:"limitBehavior" env:"AUTH_SESSION_LIMIT_BEHAVIOR"`
}

// PasswordPolicies enforce password requirements at registration time.
type PasswordPolicies struct {
	MinLen           int  `json:"minLen" env:"AUTH_PASSWORD_MIN_LENGTH"`
	MaxLen           int  `json:"maxLen" env:"AUTH_PASSWORD_MAX_LENGTH"`
	RequireUpper     bool `json:"requireUpper" env:"AUTH_PASSWORD_REQUIRE_UPPER"`
	RequireLower     bool `json:"requireLower" env:"AUTH_PASSWORD_REQUIRE_LOWER"`
	RequireDigit     bool `json:"requireDigit" env:"AUTH_PASSWORD_REQUIRE_DIGIT"`
	RequireSpecial   bool `json:"requireSpecial" env:"AUTH_PASSWORD_REQUIRE_SPECIAL"`
	ExpirationDays   int  `json:"expirationDays" env:"AUTH_PASSWORD_EXPIRATION_DAYS"`
	PreventReuseLast int  `json:"preventReuseLast" env:"AUTH_PASSWORD_PREVENT_REUSE"`
}

// SecurityPolicies hold thresholds for lockout and hardening features.
type SecurityPolicies struct {
	MaxFailedLogins           int  `json:"maxFailedLogins" env:"AUTH_MAX_FAILED_LOGINS"`
	LockoutDurationSeconds    int  `json:"lockoutDurationSec" env:"AUTH_LOCKOUT_DURATION"`
	RateLimiting              bool `json:"rateLimiting" env:"AUTH_RATE_LIMITING"`
	DeviceFingerprinting      bool `json:"deviceFingerprinting" env:"AUTH_DEVICE_FINGERPRINTING"`
	RequireEmailVerification  bool `json:"requireEmailVerification" env:"AUTH_REQUIRE_EMAIL_VERIFICATION"`
	MFAEnabled                bool `json:"mfaEnabled" env:"AUTH_MFA_ENABLED"`
	RequireMFAForSensitiveOps bool `json:"requireMfaForSensitiveOps" env:"AUTH_MFA_SENSITIVE_OPS"`
}

// PolicyConfig is the single source of truth for auth tunables. Treat it as
// immutable after LoadPolicyConfig; components receive it by value.
type PolicyConfig struct {
	Tokens    TokenPolicies    `json:"tokens"`
	Sessions  SessionPolicies  `json:"sessions"`
	Passwords PasswordPolicies `json:"passwords"`
	Security  SecurityPolicies `json:"security"`
}

// DefaultPolicyConfig returns secure defaults suitable for most deployments.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Tokens: TokenPolicies{
			AccessTTLSeconds:  15 * 60,
			RefreshTTLSeconds: 30 * 24 * 60 * 60,
			RotateRefresh:     true,
		},
		Sessions: SessionPolicies{
			MaxPerUser:               10,
			AllowMultiPerDevice:      true,
			InactivityTimeoutSeconds: 0,
			LimitBehavior:            LimitPruneOldest,
		},
		Passwords: PasswordPolicies{
			MinLen: 8,
			MaxLen: 128,
		},
		Security: SecurityPolicies{
			MaxFailedLogins:        5,
			LockoutDurationSeconds: 15 * 60,
			RateLimiting:           true,
		},
	}
}

// Validate enforces the policy range invariants. A failing config must be
// treated as fatal: the process should not start with invalid policy.
func (c PolicyConfig) Validate() error {
	if err := validation.ValidateStruct(&c.Tokens,
		validation.Field(&c.Tokens.AccessTTLSeconds, validation.Required, validation.Min(60), validation.Max(3600)),
		validation.Field(&c.Tokens.RefreshTTLSeconds, validation.Required, validation.Min(86400)),
	); err != nil {
		return invalidPolicy("tokens", err)
	}

	if err := validation.ValidateStruct(&c.Sessions,
		validation.Field(&c.Sessions.MaxPerUser, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.Sessions.InactivityTimeoutSeconds, validation.Min(0)),
		validation.Field(&c.Sessions.LimitBehavior, validation.Required, validation.In(LimitRejectNew, LimitPruneOldest)),
	); err != nil {
		return invalidPolicy("sessions", err)
	}

	if err := validation.ValidateStruct(&c.Passwords,
		validation.Field(&c.Passwords.MinLen, validation.Required, validation.Min(8)),
		validation.Field(&c.Passwords.MaxLen, validation.Required, validation.Min(c.Passwords.MinLen)),
		validation.Field(&c.Passwords.ExpirationDays, validation.Min(0)),
		validation.Field(&c.Passwords.PreventReuseLast, validation.Min(0)),
	); err != nil {
		return invalidPolicy("passwords", err)
	}

	if err := validation.ValidateStruct(&c.Security,
		validation.Field(&c.Security.MaxFailedLogins, validation.Required, validation.Min(1)),
		validation.Field(&c.Security.LockoutDurationSeconds, validation.Min(0)),
	); err != nil {
		return invalidPolicy("security", err)
	}

	return nil
}

func invalidPolicy(group string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid auth policy configuration").
		WithTextCode(textCodeInvalidPolicy).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"group": group})
}

// AccessTokenTTL returns the access token lifetime as a duration.
func (c PolicyConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.Tokens.AccessTTLSeconds) * time.Second
}

// RefreshTokenTTL returns the refresh token lifetime as a duration.
func (c PolicyConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Tokens.RefreshTTLSeconds) * time.Second
}

// InactivityTimeout returns the session inactivity window; zero disables it.
func (c PolicyConfig) InactivityTimeout() time.Duration {
	return time.Duration(c.Sessions.InactivityTimeoutSeconds) * time.Second
}

// LockoutDuration returns the account lockout window after repeated failures.
func (c PolicyConfig) LockoutDuration() time.Duration {
	return time.Duration(c.Security.LockoutDurationSeconds) * time.Second
}
