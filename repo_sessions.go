package auth

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionsOption customizes the registry.
type SessionsOption func(*sessionRegistry)

// WithSessionsClock injects a custom clock (useful for tests).
func WithSessionsClock(now func() time.Time) SessionsOption {
	return func(r *sessionRegistry) {
		if now != nil {
			r.clock = now
		}
	}
}

// WithSessionsLogger overrides the registry logger.
func WithSessionsLogger(logger Logger) SessionsOption {
	return func(r *sessionRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type sessionRegistry struct {
	db     *bun.DB
	policy PolicyConfig
	logger Logger
	clock  clock
	locks  userLocks
}

var _ Sessions = (*sessionRegistry)(nil)

// NewSessionsRepository builds the session registry over a bun database.
// The policy value must already be validated.
func NewSessionsRepository(db *bun.DB, policy PolicyConfig, opts ...SessionsOption) Sessions {
	r := &sessionRegistry{
		db:     db,
		policy: policy,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Create counts, optionally evicts, and inserts as one per-user critical
// section. Two concurrent creates for the same user cannot both observe
// "under limit" and overshoot maxPerUser.
func (r *sessionRegistry) Create(ctx context.Context, userID uuid.UUID, meta DeviceMeta) (*Session, error) {
	unlock := r.locks.lock(userID)
	defer unlock()

	now := r.clock.now()

	if !r.policy.Sessions.AllowMultiPerDevice && meta.DeviceID != "" {
		if err := r.revokeDeviceSessions(ctx, userID, meta.DeviceID, now); err != nil {
			return nil, err
		}
	}

	count, err := r.countActive(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	if count >= r.policy.Sessions.MaxPerUser {
		if r.policy.Sessions.LimitBehavior == LimitRejectNew {
			return nil, ErrSessionLimitReached
		}

		evict := count - r.policy.Sessions.MaxPerUser + 1
		if err := r.pruneOldest(ctx, userID, evict, now); err != nil {
			return nil, err
		}
	}

	session := &Session{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     SessionStatusActive,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		DeviceID:   meta.DeviceID,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(r.policy.RefreshTokenTTL()),
	}

	if _, err := r.db.NewInsert().Model(session).Exec(ctx); err != nil {
		return nil, err
	}

	return session, nil
}

func (r *sessionRegistry) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	session := &Session{}
	err := r.db.NewSelect().
		Model(session).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return session, nil
}

// Revoke is idempotent: revoking an already-revoked session is a no-op.
// Unknown ids fail with SESSION_NOT_FOUND.
func (r *sessionRegistry) Revoke(ctx context.Context, id uuid.UUID, reason SessionInvalidationReason) error {
	now := r.clock.now()

	res, err := r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("status = ?", SessionStatusRevoked).
		Set("revoked_at = ?", now).
		Set("revoked_reason = ?", reason).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.status != ?", SessionStatusRevoked).
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

func (r *sessionRegistry) RevokeAll(ctx context.Context, userID uuid.UUID, exclude *uuid.UUID, reason SessionInvalidationReason) (int, error) {
	now := r.clock.now()

	q := r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("status = ?", SessionStatusRevoked).
		Set("revoked_at = ?", now).
		Set("revoked_reason = ?", reason).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status = ?", SessionStatusActive)

	if exclude != nil {
		q = q.Where("?TableAlias.id != ?", *exclude)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}

// ListActive returns active sessions ordered most recently seen first so
// callers can identify the current session heuristically. Sessions idle
// past the inactivity window are omitted even though their expiry is
// only applied on the next Touch.
func (r *sessionRegistry) ListActive(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	now := r.clock.now()

	var records []*Session
	q := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status = ?", SessionStatusActive).
		Where("?TableAlias.expires_at > ?", now)

	if timeout := r.policy.InactivityTimeout(); timeout > 0 {
		q = q.Where("?TableAlias.last_seen_at > ?", now.Add(-timeout))
	}

	err := q.Order("last_seen_at DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Touch updates last_seen_at. A session past its inactivity window or its
// absolute expiry transitions to expired instead and the call fails with
// SESSION_EXPIRED.
func (r *sessionRegistry) Touch(ctx context.Context, id uuid.UUID) (*Session, error) {
	session, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case SessionStatusRevoked:
		return nil, ErrSessionRevoked
	case SessionStatusExpired:
		return nil, ErrSessionExpired
	}

	now := r.clock.now()

	if !now.Before(session.ExpiresAt) {
		if err := r.expire(ctx, session, ""); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	if timeout := r.policy.InactivityTimeout(); timeout > 0 && now.Sub(session.LastSeenAt) > timeout {
		if err := r.expire(ctx, session, ReasonInactivity); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	session.LastSeenAt = now
	_, err = r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("last_seen_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *sessionRegistry) countActive(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	return r.db.NewSelect().
		Model((*Session)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status = ?", SessionStatusActive).
		Where("?TableAlias.expires_at > ?", now).
		Count(ctx)
}

// pruneOldest evicts the least-recently-seen active sessions, ties broken
// by creation time ascending.
func (r *sessionRegistry) pruneOldest(ctx context.Context, userID uuid.UUID, n int, now time.Time) error {
	var victims []uuid.UUID
	err := r.db.NewSelect().
		Model((*Session)(nil)).
		Column("id").
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status = ?", SessionStatusActive).
		Where("?TableAlias.expires_at > ?", now).
		Order("last_seen_at ASC", "created_at ASC").
		Limit(n).
		Scan(ctx, &victims)
	if err != nil {
		return err
	}

	if len(victims) == 0 {
		return nil
	}

	_, err = r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("status = ?", SessionStatusRevoked).
		Set("revoked_at = ?", now).
		Set("revoked_reason = ?", ReasonPruned).
		Where("?TableAlias.id IN (?)", bun.In(victims)).
		Exec(ctx)

	return err
}

func (r *sessionRegistry) revokeDeviceSessions(ctx context.Context, userID uuid.UUID, deviceID string, now time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("status = ?", SessionStatusRevoked).
		Set("revoked_at = ?", now).
		Set("revoked_reason = ?", ReasonPruned).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.device_id = ?", deviceID).
		Where("?TableAlias.status = ?", SessionStatusActive).
		Exec(ctx)

	return err
}

func (r *sessionRegistry) expire(ctx context.Context, session *Session, reason SessionInvalidationReason) error {
	q := r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("status = ?", SessionStatusExpired).
		Where("?TableAlias.id = ?", session.ID).
		Where("?TableAlias.status = ?", SessionStatusActive)

	if reason != "" {
		q = q.Set("revoked_reason = ?", reason)
	}

	_, err := q.Exec(ctx)
	return err
}

// userLocks serializes session creation per user. The map only ever grows
// by one mutex per distinct user seen by this process; eviction is not
// needed at the cardinality this registry handles.
type userLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (l *userLocks) lock(userID uuid.UUID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
