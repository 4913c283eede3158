package auth

import (
	"context"
	"net/mail"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Auther implements the AuthService boundary over the account store,
// session registry, and token issuer.
type Auther struct {
	policy       PolicyConfig
	accounts     AccountStore
	sessions     Sessions
	issuer       Issuer
	passwords    PasswordAuthenticator
	logger       Logger
	clock        clock
	activitySink ActivitySink
}

var _ AuthService = (*Auther)(nil)

// NewAuthenticator returns a new Auther. The policy value must already be
// validated; construct it with LoadPolicyConfig.
func NewAuthenticator(policy PolicyConfig, accounts AccountStore, sessions Sessions, issuer Issuer) *Auther {
	return &Auther{
		policy:       policy,
		accounts:     accounts,
		sessions:     sessions,
		issuer:       issuer,
		passwords:    NewPasswordAuthenticator(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithPasswordAuthenticator overrides the bcrypt-backed default.
func (s *Auther) WithPasswordAuthenticator(p PasswordAuthenticator) *Auther {
	if p != nil {
		s.passwords = p
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.clock = now
	}
	return s
}

// Authenticate verifies credentials, creates a session, and issues tokens.
// Unknown users and wrong passwords are indistinguishable to the caller:
// both fail with INVALID_CREDENTIALS.
func (s *Auther) Authenticate(ctx context.Context, email, password string, meta DeviceMeta) (*AuthResult, error) {
	user, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.emitFailure(ctx, "", email, ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during authentication")
	}

	if err := s.ensureNotLockedOut(user); err != nil {
		s.emitFailure(ctx, user.ID.String(), email, err)
		return nil, err
	}

	if err := statusAuthError(user.Status); err != nil {
		s.emitFailure(ctx, user.ID.String(), email, err)
		return nil, err
	}

	if err := s.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if trackErr := s.accounts.TrackAttemptedLogin(ctx, user); trackErr != nil {
			s.logger.Error("failed to track login attempt", "error", trackErr)
		}
		s.emitFailure(ctx, user.ID.String(), email, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if err := s.accounts.TrackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Error("failed to track successful login", "error", err)
	}

	session, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	tokens, err := s.issuer.Issue(ctx, session, user.Identity())
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		SessionID: session.ID.String(),
		Severity:  SeverityLow,
	})

	return &AuthResult{User: user, Session: session, Tokens: tokens}, nil
}

// Register creates an account and, when requested, a first session with
// tokens.
func (s *Auther) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError(err)
	}

	if err := CheckPasswordPolicy(input.Password, s.policy.Passwords); err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyRegistered
	} else if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing registration")
	}

	hash, err := s.passwords.HashPassword(input.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	status := UserStatusActive
	if s.policy.Security.RequireEmailVerification {
		status = UserStatusPending
	}

	user, err := s.accounts.Register(ctx, &User{
		Email:        email,
		PasswordHash: hash,
		Status:       status,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register user")
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventRegister,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Severity:  SeverityLow,
	})

	if !input.IssueSession || user.Status != UserStatusActive {
		return &AuthResult{User: user}, nil
	}

	session, err := s.sessions.Create(ctx, user.ID, input.Meta)
	if err != nil {
		return nil, err
	}

	tokens, err := s.issuer.Issue(ctx, session, user.Identity())
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Session: session, Tokens: tokens}, nil
}

// RefreshSession exchanges a refresh token for fresh tokens and the
// current session/user view.
func (s *Auther) RefreshSession(ctx context.Context, refreshToken string) (*AuthResult, error) {
	result, err := s.issuer.Refresh(ctx, refreshToken)
	if err != nil {
		if IsSecurityThreat(err) {
			s.emit(ctx, ActivityEvent{
				EventType: ActivityEventSecurityAlert,
				Actor:     ActorRef{Type: "unknown"},
				Severity:  SeverityOf(err),
				Metadata:  map[string]any{"code": CodeOf(err)},
			})
		}
		return nil, err
	}

	user, err := s.accounts.GetByID(ctx, result.UserID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user after refresh")
	}

	return &AuthResult{User: user, Session: result.Session, Tokens: result.Tokens}, nil
}

// Logout revokes one session. Revoking an already-revoked session is a
// no-op. When UserID is set the session must belong to that user; a
// mismatch is reported as SESSION_NOT_FOUND so session ids cannot be
// probed across users.
func (s *Auther) Logout(ctx context.Context, input LogoutInput) error {
	reason := input.Reason
	if reason == "" {
		reason = ReasonLogout
	}

	if input.UserID != nil {
		session, err := s.sessions.Get(ctx, input.SessionID)
		if err != nil {
			return err
		}
		if session.UserID != *input.UserID {
			return ErrSessionNotFound
		}
	}

	if err := s.sessions.Revoke(ctx, input.SessionID, reason); err != nil {
		return err
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventSessionRevoked,
		Actor:     ActorRef{Type: "user"},
		SessionID: input.SessionID.String(),
		Severity:  SeverityLow,
		Metadata:  map[string]any{"reason": reason},
	})

	return nil
}

// LogoutAll revokes every active session for the user except the excluded
// one, returning the number revoked.
func (s *Auther) LogoutAll(ctx context.Context, input LogoutAllInput) (int, error) {
	reason := input.Reason
	if reason == "" {
		reason = ReasonLogoutAll
	}

	count, err := s.sessions.RevokeAll(ctx, input.UserID, input.ExcludeSessionID, reason)
	if err != nil {
		return 0, err
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventSessionRevoked,
		Actor:     ActorRef{ID: input.UserID.String(), Type: "user"},
		UserID:    input.UserID.String(),
		Severity:  SeverityLow,
		Metadata:  map[string]any{"reason": reason, "count": count},
	})

	return count, nil
}

// ListActiveSessions returns the user's active sessions, most recently
// seen first.
func (s *Auther) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	return s.sessions.ListActive(ctx, userID)
}

// ensureNotLockedOut enforces the failed-login lockout window. The counter
// resets implicitly once the window has passed.
func (s *Auther) ensureNotLockedOut(user *User) error {
	if user.LoginAttemptAt == nil {
		return nil
	}

	if user.LoginAttempts < s.policy.Security.MaxFailedLogins {
		return nil
	}

	if s.clock.now().Sub(*user.LoginAttemptAt) >= s.policy.LockoutDuration() {
		user.LoginAttempts = 0
		return nil
	}

	return ErrAccountLocked
}

func (s *Auther) emitFailure(ctx context.Context, userID, email string, cause error) {
	event := ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{ID: userID, Type: "unknown"},
		UserID:    userID,
		Severity:  SeverityOf(cause),
		Metadata: map[string]any{
			"identifier": NormalizeEmail(email),
			"code":       CodeOf(cause),
		},
	}

	if IsSecurityThreat(cause) {
		event.EventType = ActivityEventSecurityAlert
	}

	s.emit(ctx, event)
}

func (s *Auther) emit(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.now()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(s.activitySink).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
