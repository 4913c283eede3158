package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

const refreshTokenBytes = 32

// TokenIssuer produces access/refresh token pairs for sessions and
// handles rotation. Access tokens are HS256 JWTs bound to the session id;
// refresh tokens are opaque random values stored hashed with a single-use
// marker.
type TokenIssuer struct {
	signingKey    []byte
	issuer        string
	audience      []string
	policy        PolicyConfig
	sessions      Sessions
	refreshTokens RefreshTokens
	accounts      AccountStore
	logger        Logger
	clock         clock
	activitySink  ActivitySink
}

var _ Issuer = (*TokenIssuer)(nil)

// TokenIssuerOption customizes the issuer.
type TokenIssuerOption func(*TokenIssuer)

// WithTokenIssuerMeta sets the iss/aud claims on minted access tokens.
func WithTokenIssuerMeta(issuer string, audience ...string) TokenIssuerOption {
	return func(t *TokenIssuer) {
		t.issuer = issuer
		t.audience = audience
	}
}

// WithTokenIssuerLogger overrides the issuer logger.
func WithTokenIssuerLogger(logger Logger) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTokenIssuerClock injects a custom clock (useful for tests).
func WithTokenIssuerClock(now func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.clock = now
		}
	}
}

// WithTokenIssuerActivitySink configures the sink for refresh and
// security-alert events.
func WithTokenIssuerActivitySink(sink ActivitySink) TokenIssuerOption {
	return func(t *TokenIssuer) {
		t.activitySink = normalizeActivitySink(sink)
	}
}

// NewTokenIssuer returns a new TokenIssuer. The policy value must already
// be validated.
func NewTokenIssuer(signingKey []byte, policy PolicyConfig, sessions Sessions, refreshTokens RefreshTokens, accounts AccountStore, opts ...TokenIssuerOption) *TokenIssuer {
	t := &TokenIssuer{
		signingKey:    signingKey,
		policy:        policy,
		sessions:      sessions,
		refreshTokens: refreshTokens,
		accounts:      accounts,
		logger:        defLogger{},
		activitySink:  noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

// Issue mints a fresh token pair for a newly created session, starting a
// new rotation chain.
func (t *TokenIssuer) Issue(ctx context.Context, session *Session, identity Identity) (*TokenSet, error) {
	return t.issue(ctx, session, identity, uuid.New())
}

func (t *TokenIssuer) issue(ctx context.Context, session *Session, identity Identity, chainID uuid.UUID) (*TokenSet, error) {
	now := t.clock.now()

	accessToken, accessExpiry, err := t.signAccessToken(session, identity, now)
	if err != nil {
		return nil, err
	}

	raw, hash, err := newRefreshTokenValue()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
	}

	refreshExpiry := now.Add(t.policy.RefreshTokenTTL())

	_, err = t.refreshTokens.Create(ctx, &RefreshToken{
		SessionID: session.ID,
		UserID:    session.UserID,
		ChainID:   chainID,
		TokenHash: hash,
		ExpiresAt: refreshExpiry,
		CreatedAt: now,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
	}

	return &TokenSet{
		TokenType:             TokenTypeBearer,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiry,
		RefreshToken:          raw,
		RefreshTokenExpiresAt: refreshExpiry,
	}, nil
}

// Refresh exchanges a refresh token for a new token set. When rotation is
// enabled the presented token is consumed and a successor is minted in the
// same chain; redeeming an already-consumed token revokes the session and
// the entire chain before the call fails with REFRESH_TOKEN_REUSED.
func (t *TokenIssuer) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	hash := hashRefreshToken(refreshToken)

	var record *RefreshToken
	var err error

	if t.policy.Tokens.RotateRefresh {
		record, err = t.refreshTokens.Consume(ctx, hash)
	} else {
		record, err = t.refreshTokens.FindByHash(ctx, hash)
		if err == nil && record.ConsumedAt != nil {
			err = ErrRefreshTokenReused
		}
	}

	if err != nil {
		if goerrors.Is(err, ErrRefreshTokenReused) && record != nil {
			t.handleReuse(ctx, record)
		}
		return nil, err
	}

	if record.RevokedAt != nil {
		return nil, ErrRefreshTokenInvalid
	}

	now := t.clock.now()
	if !now.Before(record.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	session, err := t.sessions.Touch(ctx, record.SessionID)
	if err != nil {
		return nil, err
	}

	user, err := t.accounts.GetByID(ctx, record.UserID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, err
	}

	if err := statusAuthError(user.Status); err != nil {
		return nil, err
	}

	var tokens *TokenSet
	if t.policy.Tokens.RotateRefresh {
		tokens, err = t.issue(ctx, session, user.Identity(), record.ChainID)
		if err != nil {
			return nil, err
		}
	} else {
		accessToken, accessExpiry, signErr := t.signAccessToken(session, user.Identity(), now)
		if signErr != nil {
			return nil, signErr
		}
		tokens = &TokenSet{
			TokenType:             TokenTypeBearer,
			AccessToken:           accessToken,
			AccessTokenExpiresAt:  accessExpiry,
			RefreshToken:          refreshToken,
			RefreshTokenExpiresAt: record.ExpiresAt,
		}
	}

	t.emit(ctx, ActivityEvent{
		EventType: ActivityEventTokenRefreshed,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		SessionID: session.ID.String(),
		Severity:  SeverityLow,
	})

	return &RefreshResult{
		UserID:  user.ID,
		Session: session,
		Tokens:  tokens,
	}, nil
}

// ValidateAccessToken parses and validates a signed access token.
func (t *TokenIssuer) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if t.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(t.issuer))
	}
	if len(t.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(t.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			t.logger.Error("TokenIssuer validate encountered unexpected signing method", "alg", tok.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid access token").
			WithCode(goerrors.CodeUnauthorized)
	}

	if claims, ok := token.Claims.(*AccessClaims); ok && token.Valid {
		return claims, nil
	}

	t.logger.Error("TokenIssuer validate could not decode or validate claims")
	return nil, goerrors.New("unable to decode access token claims", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized)
}

func (t *TokenIssuer) signAccessToken(session *Session, identity Identity, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(t.policy.AccessTokenTTL())

	var aud jwt.ClaimStrings
	if len(t.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(t.audience))
		copy(aud, t.audience)
	}

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:       identity.ID(),
		SessionID: session.ID.String(),
		UserRole:  identity.Role(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	return signed, expiresAt, nil
}

// handleReuse revokes the session and every live token in the chain. Reuse
// means the token leaked; denying just the request would leave the thief's
// rotated copy valid.
func (t *TokenIssuer) handleReuse(ctx context.Context, record *RefreshToken) {
	revoked, err := t.refreshTokens.RevokeChain(ctx, record.ChainID)
	if err != nil {
		t.logger.Error("failed to revoke refresh token chain", "chain_id", record.ChainID.String(), "error", err)
	}

	if err := t.sessions.Revoke(ctx, record.SessionID, ReasonTokenReuse); err != nil {
		t.logger.Error("failed to revoke session after token reuse", "session_id", record.SessionID.String(), "error", err)
	}

	t.emit(ctx, ActivityEvent{
		EventType: ActivityEventSecurityAlert,
		Actor:     ActorRef{Type: "unknown"},
		UserID:    record.UserID.String(),
		SessionID: record.SessionID.String(),
		Severity:  SeverityCritical,
		Metadata: map[string]any{
			"code":           CodeRefreshTokenReused,
			"tokens_revoked": revoked,
		},
	})
}

func (t *TokenIssuer) emit(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = t.clock.now()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(t.activitySink).Record(ctx, event); err != nil {
		t.logger.Warn("activity sink record error: %v", err)
	}
}

func newRefreshTokenValue() (raw, hash string, err error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, hashRefreshToken(raw), nil
}

func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
