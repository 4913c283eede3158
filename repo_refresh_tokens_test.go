package auth_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	auth "github.com/sessionworks/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func seedRefreshToken(t *testing.T, store auth.RefreshTokens, chainID uuid.UUID, raw string, expiresAt time.Time) *auth.RefreshToken {
	t.Helper()

	record, err := store.Create(context.Background(), &auth.RefreshToken{
		SessionID: uuid.New(),
		UserID:    uuid.New(),
		ChainID:   chainID,
		TokenHash: hashToken(raw),
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
	return record
}

func TestRefreshTokensConsume(t *testing.T) {
	db := setupTestDB(t)
	clk := newTestClock()
	store := auth.NewRefreshTokensRepository(db, auth.WithRefreshTokensClock(clk.Now))
	ctx := context.Background()

	expiry := clk.Now().Add(24 * time.Hour)
	seedRefreshToken(t, store, uuid.New(), "raw-token", expiry)

	record, err := store.Consume(ctx, hashToken("raw-token"))
	require.NoError(t, err)
	require.NotNil(t, record.ConsumedAt)

	// the single-use marker makes the second redemption reuse
	again, err := store.Consume(ctx, hashToken("raw-token"))
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenReused, auth.CodeOf(err))
	require.NotNil(t, again)
	assert.Equal(t, record.ID, again.ID)
}

func TestRefreshTokensConsumeExpired(t *testing.T) {
	db := setupTestDB(t)
	clk := newTestClock()
	store := auth.NewRefreshTokensRepository(db, auth.WithRefreshTokensClock(clk.Now))
	ctx := context.Background()

	seedRefreshToken(t, store, uuid.New(), "stale-token", clk.Now().Add(time.Hour))
	clk.Advance(2 * time.Hour)

	record, err := store.Consume(ctx, hashToken("stale-token"))
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenExpired, auth.CodeOf(err))
	require.NotNil(t, record)
	assert.Nil(t, record.ConsumedAt)

	// an expired token stays expired on every redemption instead of
	// tripping the reuse path
	_, err = store.Consume(ctx, hashToken("stale-token"))
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenExpired, auth.CodeOf(err))
}

func TestRefreshTokensConsumeUnknownHash(t *testing.T) {
	db := setupTestDB(t)
	store := auth.NewRefreshTokensRepository(db)

	_, err := store.Consume(context.Background(), hashToken("never-issued"))
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenInvalid, auth.CodeOf(err))
}

func TestRefreshTokensFindByHash(t *testing.T) {
	db := setupTestDB(t)
	clk := newTestClock()
	store := auth.NewRefreshTokensRepository(db, auth.WithRefreshTokensClock(clk.Now))
	ctx := context.Background()

	seeded := seedRefreshToken(t, store, uuid.New(), "findable", clk.Now().Add(time.Hour))

	got, err := store.FindByHash(ctx, hashToken("findable"))
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)

	_, err = store.FindByHash(ctx, hashToken("missing"))
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenInvalid, auth.CodeOf(err))
}

func TestRefreshTokensRevokeChain(t *testing.T) {
	db := setupTestDB(t)
	clk := newTestClock()
	store := auth.NewRefreshTokensRepository(db, auth.WithRefreshTokensClock(clk.Now))
	ctx := context.Background()

	chain := uuid.New()
	expiry := clk.Now().Add(24 * time.Hour)
	seedRefreshToken(t, store, chain, "link-1", expiry)
	seedRefreshToken(t, store, chain, "link-2", expiry)
	seedRefreshToken(t, store, uuid.New(), "other-chain", expiry)

	count, err := store.RevokeChain(ctx, chain)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// revoked links refuse consumption
	_, err = store.Consume(ctx, hashToken("link-1"))
	require.Error(t, err)
	assert.Equal(t, auth.CodeRefreshTokenInvalid, auth.CodeOf(err))

	// the unrelated chain is untouched
	_, err = store.Consume(ctx, hashToken("other-chain"))
	require.NoError(t, err)

	// revoking again finds nothing live
	count, err = store.RevokeChain(ctx, chain)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
