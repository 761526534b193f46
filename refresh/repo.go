package refresh

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repo manages server-side storage of refresh-token records. All mutations
// of a record's lifecycle state go through here; every lookup is by digest
// or by owning user, never by plaintext.
//
// Revocation is two-phase: RevokeIfLive sets the revocation fields, then
// SoftDelete releases the unique hash slot while keeping the row queryable
// for reuse detection. RevokeIfLive is the race-resolution primitive for
// concurrent rotations: it must be an atomic conditional update, and a
// false return means another caller already retired the record.
type Repo interface {
	Create(ctx context.Context, record *Record) error

	// GetByHash returns nil when no record matches. Soft-deleted records
	// are only visible when includeDeleted is set; the rotation engine
	// needs them to tell a replayed dead token apart from a token that
	// never existed.
	GetByHash(ctx context.Context, tokenHash string, includeDeleted bool) (*Record, error)

	// RevokeIfLive marks the record revoked iff it is still live. Returns
	// false without error when the record was already revoked or deleted.
	RevokeIfLive(ctx context.Context, id uuid.UUID, reason Reason, at time.Time) (bool, error)

	// SoftDelete marks the record deleted, freeing its unique hash slot.
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error

	// RevokeAllForUser revokes and soft-deletes every live record owned by
	// the user in one pass and returns the number affected.
	RevokeAllForUser(ctx context.Context, userID string, reason Reason, at time.Time) (int64, error)

	// ListActiveForUser returns the user's live, unexpired records ordered
	// by LastUsedAt descending.
	ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]*Record, error)

	// RevokeByID revokes a single record only when it is live and owned by
	// userID. Returns false when not owned or already dead.
	RevokeByID(ctx context.Context, id uuid.UUID, userID string, reason Reason, at time.Time) (bool, error)

	// PurgeStale hard-deletes records that are expired, idle beyond the
	// window, or revoked longer ago than the retention. Returns the number
	// removed.
	PurgeStale(ctx context.Context, now time.Time, idleWindow, revokedRetention time.Duration) (int64, error)
}
