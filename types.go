package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated principal
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// AccountStore is the user store the lifecycle core reads from. Accounts
// are owned elsewhere; this package only registers new users and tracks
// login attempts.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	Register(ctx context.Context, user *User) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// Sessions is the session registry: per-user cardinality and lifecycle.
type Sessions interface {
	Create(ctx context.Context, userID uuid.UUID, meta DeviceMeta) (*Session, error)
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Revoke(ctx context.Context, id uuid.UUID, reason SessionInvalidationReason) error
	RevokeAll(ctx context.Context, userID uuid.UUID, exclude *uuid.UUID, reason SessionInvalidationReason) (int, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]*Session, error)
	Touch(ctx context.Context, id uuid.UUID) (*Session, error)
}

// RefreshTokens persists refresh tokens and their single-use markers.
type RefreshTokens interface {
	Create(ctx context.Context, record *RefreshToken) (*RefreshToken, error)
	FindByHash(ctx context.Context, hash string) (*RefreshToken, error)
	Consume(ctx context.Context, hash string) (*RefreshToken, error)
	RevokeChain(ctx context.Context, chainID uuid.UUID) (int, error)
}

// Issuer produces and rotates token sets for sessions.
type Issuer interface {
	Issue(ctx context.Context, session *Session, identity Identity) (*TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
}

// AuthService is the boundary exposed to transport adapters.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string, meta DeviceMeta) (*AuthResult, error)
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	RefreshSession(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, input LogoutInput) error
	LogoutAll(ctx context.Context, input LogoutAllInput) (int, error)
	ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*Session, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// DeviceMeta carries optional client metadata captured at session creation.
type DeviceMeta struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
}

// AuthResult is the composite value returned by the boundary operations.
// Tokens and Session are nil for register calls that skip session issuance.
type AuthResult struct {
	User    *User     `json:"user"`
	Session *Session  `json:"session,omitempty"`
	Tokens  *TokenSet `json:"tokens,omitempty"`
}

// RefreshResult is the outcome of a successful refresh-token exchange.
type RefreshResult struct {
	UserID  uuid.UUID
	Session *Session
	Tokens  *TokenSet
}

// RegisterInput captures a registration request.
type RegisterInput struct {
	Email        string
	Password     string
	IssueSession bool
	Meta         DeviceMeta
}

// LogoutInput identifies a session to end. UserID, when set, is an
// ownership guard: the session must belong to that user.
type LogoutInput struct {
	SessionID uuid.UUID
	UserID    *uuid.UUID
	Reason    SessionInvalidationReason
}

// LogoutAllInput ends every active session of a user, optionally keeping one.
type LogoutAllInput struct {
	UserID           uuid.UUID
	ExcludeSessionID *uuid.UUID
	Reason           SessionInvalidationReason
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// clock lets tests pin time; zero value uses time.Now.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
