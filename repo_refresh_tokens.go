package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokensOption customizes the store.
type RefreshTokensOption func(*refreshTokens)

// WithRefreshTokensClock injects a custom clock (useful for tests).
func WithRefreshTokensClock(now func() time.Time) RefreshTokensOption {
	return func(r *refreshTokens) {
		if now != nil {
			r.clock = now
		}
	}
}

type refreshTokens struct {
	db    *bun.DB
	clock clock
}

var _ RefreshTokens = (*refreshTokens)(nil)

// NewRefreshTokensRepository builds the refresh token store.
func NewRefreshTokensRepository(db *bun.DB, opts ...RefreshTokensOption) RefreshTokens {
	r := &refreshTokens{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *refreshTokens) Create(ctx context.Context, record *RefreshToken) (*RefreshToken, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.clock.now()
	}

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *refreshTokens) FindByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", hash).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, err
	}

	return record, nil
}

// Consume flips the single-use marker with one conditional UPDATE so a
// concurrent duplicate redemption of the same token deterministically
// loses: the winner gets the row, the loser sees the consumed marker and
// gets REFRESH_TOKEN_REUSED. Expired tokens never consume: they fail
// with REFRESH_TOKEN_EXPIRED no matter how often they are presented.
func (r *refreshTokens) Consume(ctx context.Context, hash string) (*RefreshToken, error) {
	now := r.clock.now()

	res, err := r.db.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("consumed_at = ?", now).
		Where("?TableAlias.token_hash = ?", hash).
		Where("?TableAlias.consumed_at IS NULL").
		Where("?TableAlias.revoked_at IS NULL").
		Where("?TableAlias.expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if affected == 1 {
		return r.FindByHash(ctx, hash)
	}

	record, err := r.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	if record.ConsumedAt != nil {
		return record, ErrRefreshTokenReused
	}

	if !now.Before(record.ExpiresAt) {
		return record, ErrRefreshTokenExpired
	}

	return nil, ErrRefreshTokenInvalid
}

// RevokeChain voids every live token descending from one issuance. Used
// when reuse is detected so a stolen-then-rotated token cannot keep a
// surviving branch alive.
func (r *refreshTokens) RevokeChain(ctx context.Context, chainID uuid.UUID) (int, error) {
	now := r.clock.now()

	res, err := r.db.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", now).
		Where("?TableAlias.chain_id = ?", chainID).
		Where("?TableAlias.revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}
