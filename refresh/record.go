// Package refresh defines the refresh-token record and the storage
// contract the rotation engine depends on. Records hold only the digest of
// a token; the plaintext is never persisted.
package refresh

import (
	"time"

	"github.com/google/uuid"
)

// Record is the server-side state of one issued refresh token.
//
// A record moves strictly forward through its lifecycle:
// active -> rotated|revoked -> soft-deleted -> purged. Soft-deleted rows
// stay queryable by hash for the revoked-retention window; finding one
// during rotation is the reuse signal that drives theft detection.
type Record struct {
	ID            uuid.UUID  // Time-ordered (UUIDv7): sortable by creation without a timestamp index
	UserID        string     // Owning identity, managed externally
	TokenHash     string     // sha256 hex digest; unique among live rows
	ExpiresAt     time.Time  // Absolute expiry, set once at issuance
	CreatedAt     time.Time
	LastUsedAt    time.Time  // Initialized to CreatedAt; the rotation successor restarts the idle clock
	Revoked       bool
	RevokedAt     *time.Time // Non-nil iff Revoked
	RevokedReason *Reason    // Non-nil iff Revoked
	UserAgent     *string    // Audit only, never used in validation
	IPAddress     *string    // Audit only, never used in validation
	DeletedAt     *time.Time // Soft-delete marker; frees the unique hash slot
}

// Live reports whether the record can still be rotated: not revoked and
// not soft-deleted. Expiry and idle timeout are time-dependent and checked
// by the engine against its injected clock.
func (r *Record) Live() bool {
	return !r.Revoked && r.DeletedAt == nil
}

// Expired reports whether the record's absolute expiry has passed.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Idle reports whether the record has gone unused longer than window.
func (r *Record) Idle(now time.Time, window time.Duration) bool {
	return now.Sub(r.LastUsedAt) > window
}
