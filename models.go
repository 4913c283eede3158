package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleGuest is a guest role (i.e. view)
	RoleGuest UserRole = "guest"
	// RoleMember is a member (i.e. view, edit)
	RoleMember UserRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin UserRole = "admin"
)

// UserStatus is the account lifecycle state.
type UserStatus = string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDisabled  UserStatus = "disabled"
	UserStatusArchived  UserStatus = "archived"
)

// User is the account record. It is owned by an external account store;
// this package reads it, registers new rows, and tracks login attempts.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Role           UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	Status         UserStatus `bun:"status,notnull" json:"status,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus backfills the zero value for rows created before the
// status column existed.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// Identity adapts the user record to the Identity interface.
func (u *User) Identity() Identity {
	return userIdentity{
		id:    u.ID.String(),
		email: u.Email,
		role:  u.Role,
	}
}

type userIdentity struct {
	id    string
	email string
	role  string
}

func (i userIdentity) ID() string    { return i.id }
func (i userIdentity) Email() string { return i.email }
func (i userIdentity) Role() string  { return i.role }

var _ Identity = userIdentity{}

// statusAuthError maps a non-authenticatable account state to its domain
// error; active accounts return nil.
func statusAuthError(status UserStatus) error {
	switch status {
	case "", UserStatusActive:
		return nil
	case UserStatusSuspended:
		return ErrUserSuspended
	default:
		return ErrUserNotActive
	}
}

// SessionStatus is the session lifecycle state.
type SessionStatus = string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusRevoked SessionStatus = "revoked"
	SessionStatusExpired SessionStatus = "expired"
)

// SessionInvalidationReason records why a session stopped being active.
type SessionInvalidationReason = string

const (
	ReasonLogout     SessionInvalidationReason = "logout"
	ReasonLogoutAll  SessionInvalidationReason = "logout_all"
	ReasonPruned     SessionInvalidationReason = "pruned"
	ReasonInactivity SessionInvalidationReason = "inactivity"
	ReasonTokenReuse SessionInvalidationReason = "token_reuse"
	ReasonAdmin      SessionInvalidationReason = "admin"
)

// Session belongs to exactly one user. A user owns zero to maxPerUser
// active sessions; the registry enforces the cardinality.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID                 `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID                 `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Status        SessionStatus             `bun:"status,notnull" json:"status,omitempty"`
	IPAddress     string                    `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string                    `bun:"user_agent" json:"user_agent,omitempty"`
	DeviceID      string                    `bun:"device_id" json:"device_id,omitempty"`
	RevokedReason SessionInvalidationReason `bun:"revoked_reason" json:"revoked_reason,omitempty"`
	CreatedAt     time.Time                 `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	LastSeenAt    time.Time                 `bun:"last_seen_at,notnull" json:"last_seen_at"`
	ExpiresAt     time.Time                 `bun:"expires_at,notnull" json:"expires_at"`
	RevokedAt     *time.Time                `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
}

// IsActive reports whether the session is usable at the given instant.
func (s *Session) IsActive(at time.Time) bool {
	return s != nil && s.Status == SessionStatusActive && at.Before(s.ExpiresAt)
}

// RefreshToken is one link in a session's rotation chain. The raw token is
// never stored; only its SHA-256 hash. ConsumedAt is the single-use marker:
// a non-nil value means the token was exchanged and any further redemption
// is reuse.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rtk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	SessionID     uuid.UUID  `bun:"session_id,notnull,type:uuid" json:"session_id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ChainID       uuid.UUID  `bun:"chain_id,notnull,type:uuid" json:"chain_id,omitempty"`
	TokenHash     string     `bun:"token_hash,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	ConsumedAt    *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// TokenSet is the ephemeral pair handed to clients. Field names are wire
// contract; existing clients persist them verbatim.
type TokenSet struct {
	TokenType             string    `json:"tokenType"`
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

// TokenTypeBearer is the only token type this issuer mints.
const TokenTypeBearer = "Bearer"

func newUUIDString() string {
	return uuid.New().String()
}
