package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/sessionworks/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type issuerFixture struct {
	issuer   *auth.TokenIssuer
	registry auth.Sessions
	user     *auth.User
	clk      *testClock
	events   *eventCollector
	db       *bun.DB
}

// eventCollector is an ActivitySink that records every event it sees.
type eventCollector struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *eventCollector) Record(_ context.Context, event auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *eventCollector) byType(eventType auth.ActivityEventType) []auth.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []auth.ActivityEvent
	for _, e := range c.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func setupIssuer(t *testing.T, mutate func(*auth.PolicyConfig)) issuerFixture {
	t.Helper()

	db := setupTestDB(t)
	clk := newTestClock()
	events := &eventCollector{}

	policy := auth.DefaultPolicyConfig()
	if mutate != nil {
		mutate(&policy)
	}
	require.NoError(t, policy.Validate())

	user := seedUser(t, db, "issuer@example.com", "secret-password", auth.UserStatusActive)

	registry := auth.NewSessionsRepository(db, policy, auth.WithSessionsClock(clk.Now))
	tokens := auth.NewRefreshTokensRepository(db, auth.WithRefreshTokensClock(clk.Now))
	accounts := auth.NewUsersRepository(db)

	issuer := auth.NewTokenIssuer(
		[]byte("test-signing-key"),
		policy,
		registry,
		tokens,
		accounts,
		auth.WithTokenIssuerMeta("test-issuer", "test:audience"),
		auth.WithTokenIssuerClock(clk.Now),
		auth.WithTokenIssuerActivitySink(events),
	)

	return issuerFixture{
		issuer:   issuer,
		registry: registry,
		user:     user,
		clk:      clk,
		events:   events,
		db:       db,
	}
}

func TestTokenIssuerIssue(t *testing.T) {
	fx := setupIssuer(t, nil)
	ctx := context.Background()

	session, err := fx.registry.Create(ctx, fx.user.ID, auth.DeviceMeta{})
	require.NoError(t, err)

	tokens, err := fx.issuer.Issue(ctx, session, fx.user.Identity())
	require.NoError(t, err)
	require.NotNil(t, tokens)

	assert.Equal(t, auth.TokenTypeBearer, tokens.TokenType)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, fx.clk.Now().Add(15*time.Minute), tokens.AccessTokenExpiresAt)
	assert.Equal(t, fx.clk.Now().Add(30*24*time.Hour), tokens.RefreshTokenExpiresAt)

	claims, err := fx.issuer.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, fx.user.ID.String(), claims.UserID())
	assert.Equal(t, session.ID.String(), claims.SessionID)
	assert.Equal(t, auth.RoleMember, claims.Role())
	assert.Equal(t, "test-issuer", claims.RegisteredClaims.Issuer)
	assert.NotEmpty(t, claims.RegisteredClaims.ID)
}

func TestTokenIssuerRefreshRotation(t *testing.T) {
	fx := setupIssuer(t, nil)
	ctx := context.Background()

	session, err := fx.registry.Create(ctx, fx.user.ID, auth.DeviceMeta{})
	require.NoError(t, err)

	tokens, err := fx.issuer.Issue(ctx, session, fx.user.Identity())
	require.NoError(t, err)

	fx.clk.Advance(time.Minute)

	result, err := fx.issuer.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, fx.user.ID, result.UserID)
	assert.Equal(t, session.ID, result.Session.ID)
	assert.NotEqual(t, tokens.RefreshToken, result.Tokens.RefreshToken)
	assert.True(t, result.Tokens.RefreshTokenExpiresAt.After(tokens.RefreshTokenExpiresAt))

	refreshed := fx.events.byType(auth.ActivityEventTokenRefreshed)
	require.Len(t, refreshed, 1)
	assert.Equal(t, session.ID.String(), refreshed[0].SessionID)
}

func TestTokenIssuerReuseDetection(t *testing.T) {
	fx := setupIssuer(t, nil)
	ctx := context.Background()

	session, err := fx.registry.Create(ctx, fx.user.ID, auth.DeviceMeta{})
	require.NoError(t, err)

	tokens, err := fx.issuer.Issue(ctx, session, fx.user.Identity())
	require.NoError(t, err)

	fx.clk.Advance(time.Minute)

	rotated, err := fx.issuer.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)

	// redeeming the consumed token again is treated as theft
	_, err = fx.issuer.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenReused, auth.CodeOf(err))
	assert.True(t, auth.IsSecurityThreat(err))

	// the session is killed with the reuse reason
	got, err := fx.registry.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionStatusRevoked, got.Status)
	assert.Equal(t, auth.ReasonTokenReuse, got.RevokedReason)

	// the rotated successor dies with the chain
	_, err = fx.issuer.Refresh(ctx, rotated.Tokens.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenInvalid, auth.CodeOf(err))

	alerts := fx.events.byType(auth.ActivityEventSecurityAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, auth.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, auth.CodeRefreshTokenReused, alerts[0].Metadata["code"])
}

func TestTokenIssuerRefreshExpired(t *testing.T) {
	fx := setupIssuer(t, nil)
	ctx := context.Background()

	session, err := fx.registry.Create(ctx, fx.user.ID, auth.DeviceMeta{})
	require.NoError(t, err)

	tokens, err := fx.issuer.Issue(ctx, session, fx.user.Identity())
	require.NoError(t, err)

	fx.clk.Advance(31 * 24 * time.Hour)

	_, err = fx.issuer.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenExpired, auth.CodeOf(err))

	// retrying an expired token stays expired and never escalates to the
	// reuse response
	_, err = fx.issuer.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenExpired, auth.CodeOf(err))

	got, err := fx.registry.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.NotEqual(t, auth.ReasonTokenReuse, got.RevokedReason)
	assert.Empty(t, fx.events.byType(auth.ActivityEventSecurityAlert))
}

func TestTokenIssuerRefreshUnknownToken(t *testing.T) {
	fx := setupIssuer(t, nil)

	_, err := fx.issuer.Refresh(context.Background(), "never-issued")
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenInvalid, auth.CodeOf(err))
}

func TestTokenIssuerRotationDisabled(t *testing.T) {
	fx := setupIssuer(t, func(p *auth.PolicyConfig) {
		p.Tokens.RotateRefresh = false
	})
	ctx := context.Background()

	session, err := fx.registry.Create(ctx, fx.user.ID, auth.DeviceMeta{})
	require.NoError(t, err)

	tokens, err := fx.issuer.Issue(ctx, session, fx.user.Identity())
	require.NoError(t, err)

	fx.clk.Advance(time.Minute)

	first, err := fx.issuer.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.RefreshToken, first.Tokens.RefreshToken)
	assert.True(t, first.Tokens.RefreshTokenExpiresAt.Equal(tokens.RefreshTokenExpiresAt))

	// without rotation the same token keeps working
	second, err := fx.issuer.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.RefreshToken, second.Tokens.RefreshToken)
}

func TestTokenIssuerRefreshSuspendedUser(t *testing.T) {
	fx := setupIssuer(t, nil)
	ctx := context.Background()

	session, err := fx.registry.Create(ctx, fx.user.ID, auth.DeviceMeta{})
	require.NoError(t, err)

	tokens, err := fx.issuer.Issue(ctx, session, fx.user.Identity())
	require.NoError(t, err)

	_, err = fx.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("status = ?", auth.UserStatusSuspended).
		Where("id = ?", fx.user.ID).
		Exec(ctx)
	require.NoError(t, err)

	fx.clk.Advance(time.Minute)

	_, err = fx.issuer.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, auth.CodeUserSuspended, auth.CodeOf(err))
}

func TestTokenIssuerRefreshUnknownUser(t *testing.T) {
	fx := setupIssuer(t, nil)
	ctx := context.Background()

	session, err := fx.registry.Create(ctx, fx.user.ID, auth.DeviceMeta{})
	require.NoError(t, err)

	tokens, err := fx.issuer.Issue(ctx, session, fx.user.Identity())
	require.NoError(t, err)

	_, err = fx.db.NewDelete().
		Model((*auth.User)(nil)).
		Where("id = ?", fx.user.ID).
		ForceDelete().
		Exec(ctx)
	require.NoError(t, err)

	fx.clk.Advance(time.Minute)

	// a vanished account reads as a bad token, not an internal failure
	_, err = fx.issuer.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenInvalid, auth.CodeOf(err))
}

func TestTokenIssuerValidateAccessToken(t *testing.T) {
	fx := setupIssuer(t, nil)
	ctx := context.Background()

	session, err := fx.registry.Create(ctx, fx.user.ID, auth.DeviceMeta{})
	require.NoError(t, err)

	tokens, err := fx.issuer.Issue(ctx, session, fx.user.Identity())
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		claims, err := fx.issuer.ValidateAccessToken(tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, session.ID.String(), claims.SessionID)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := fx.issuer.ValidateAccessToken("not.a.jwt")
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		// mint with a clock far enough in the past that the token is
		// already expired by wall-clock time
		fx.clk.Advance(-time.Hour)
		expired, err := fx.issuer.Issue(ctx, session, fx.user.Identity())
		require.NoError(t, err)

		_, err = fx.issuer.ValidateAccessToken(expired.AccessToken)
		require.Error(t, err)
		assert.Equal(t, auth.CodeSessionExpired, auth.CodeOf(err))
	})
}
