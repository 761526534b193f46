// Package postgres implements refresh.Repo against a Postgres pool. The
// rotation race is resolved here: RevokeIfLive is a conditional UPDATE
// whose affected-row count tells a concurrent caller it lost.
package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	serviceErrors "github.com/jrsteele09/go-session-service/internal/errors"
	"github.com/jrsteele09/go-session-service/refresh"
)

const uniqueViolationCode = "23505"

var _ refresh.Repo = (*Repo)(nil)

// Repo is the Postgres-backed refresh token record store.
type Repo struct {
	db *pgxpool.Pool
}

// NewRepo creates a refresh token repository on the given pool.
func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const recordColumns = `id, user_id, token_hash, expires_at, created_at, last_used_at,
		is_revoked, revoked_at, revoked_reason, user_agent, ip_address, deleted_at`

func (r *Repo) Create(ctx context.Context, record *refresh.Record) error {
	query := `
		INSERT INTO refresh_tokens (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Exec(ctx, query,
		record.ID, record.UserID, record.TokenHash, record.ExpiresAt,
		record.CreatedAt, record.LastUsedAt, record.Revoked, record.RevokedAt,
		record.RevokedReason, record.UserAgent, record.IPAddress, record.DeletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			// Should never happen for fresh random tokens; a collision here
			// means token generation is broken, not a user mistake.
			return errors.Wrapf(serviceErrors.ErrDuplicateTokenHash, "[Repo.Create] %s", pgErr.Detail)
		}
		return serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.Create] %v", err)
	}
	return nil
}

func (r *Repo) GetByHash(ctx context.Context, tokenHash string, includeDeleted bool) (*refresh.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	// A dead row and a live row can share a hash; prefer the live one, then
	// the most recent history entry.
	query += `
		ORDER BY (deleted_at IS NULL) DESC, created_at DESC
		LIMIT 1`

	record := &refresh.Record{}
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&record.ID, &record.UserID, &record.TokenHash, &record.ExpiresAt,
		&record.CreatedAt, &record.LastUsedAt, &record.Revoked, &record.RevokedAt,
		&record.RevokedReason, &record.UserAgent, &record.IPAddress, &record.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.GetByHash] %v", err)
	}
	return record, nil
}

func (r *Repo) RevokeIfLive(ctx context.Context, id uuid.UUID, reason refresh.Reason, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $2, revoked_reason = $3
		WHERE id = $1 AND NOT is_revoked AND deleted_at IS NULL`
	commandTag, err := r.db.Exec(ctx, query, id, at, reason)
	if err != nil {
		return false, serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.RevokeIfLive] %v", err)
	}
	// Zero rows means another caller already retired this record.
	return commandTag.RowsAffected() > 0, nil
}

func (r *Repo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.Exec(ctx, query, id, at); err != nil {
		return serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.SoftDelete] %v", err)
	}
	return nil
}

func (r *Repo) RevokeAllForUser(ctx context.Context, userID string, reason refresh.Reason, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $2, revoked_reason = $3, deleted_at = $2
		WHERE user_id = $1 AND NOT is_revoked AND deleted_at IS NULL`
	commandTag, err := r.db.Exec(ctx, query, userID, at, reason)
	if err != nil {
		return 0, serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.RevokeAllForUser] %v", err)
	}
	return commandTag.RowsAffected(), nil
}

func (r *Repo) ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]*refresh.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND NOT is_revoked AND deleted_at IS NULL AND expires_at > $2
		ORDER BY last_used_at DESC`
	rows, err := r.db.Query(ctx, query, userID, now)
	if err != nil {
		return nil, serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.ListActiveForUser] %v", err)
	}
	defer rows.Close()

	records := make([]*refresh.Record, 0)
	for rows.Next() {
		record := &refresh.Record{}
		if err := rows.Scan(
			&record.ID, &record.UserID, &record.TokenHash, &record.ExpiresAt,
			&record.CreatedAt, &record.LastUsedAt, &record.Revoked, &record.RevokedAt,
			&record.RevokedReason, &record.UserAgent, &record.IPAddress, &record.DeletedAt,
		); err != nil {
			return nil, serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.ListActiveForUser] scan: %v", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.ListActiveForUser] rows: %v", err)
	}
	return records, nil
}

func (r *Repo) RevokeByID(ctx context.Context, id uuid.UUID, userID string, reason refresh.Reason, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $3, revoked_reason = $4, deleted_at = $3
		WHERE id = $1 AND user_id = $2 AND NOT is_revoked AND deleted_at IS NULL`
	commandTag, err := r.db.Exec(ctx, query, id, userID, at, reason)
	if err != nil {
		return false, serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.RevokeByID] %v", err)
	}
	return commandTag.RowsAffected() > 0, nil
}

func (r *Repo) PurgeStale(ctx context.Context, now time.Time, idleWindow, revokedRetention time.Duration) (int64, error) {
	idleCutoff := now.Add(-idleWindow)
	revokedCutoff := now.Add(-revokedRetention)
	// Idle purge only applies to rows that were never revoked: a revoked
	// row's last_used_at is frozen, and it must stay queryable for the
	// full retention window so replays of it are still detectable.
	query := `
		DELETE FROM refresh_tokens
		WHERE (revoked_at IS NULL AND (expires_at < $1 OR last_used_at < $2))
		   OR (revoked_at IS NOT NULL AND revoked_at < $3)`
	commandTag, err := r.db.Exec(ctx, query, now, idleCutoff, revokedCutoff)
	if err != nil {
		return 0, serviceErrors.Wrapf(serviceErrors.ErrPersistence, "[Repo.PurgeStale] %v", err)
	}
	return commandTag.RowsAffected(), nil
}
