package refreshrepofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	serviceErrors "github.com/jrsteele09/go-session-service/internal/errors"
	"github.com/jrsteele09/go-session-service/refresh"
)

var _ refresh.Repo = (*FakeRefreshRepo)(nil)

// FakeRefreshRepo is an in-memory refresh.Repo with the same conditional
// update semantics as the Postgres store, so rotation races can be tested
// without a database. All mutations happen under one lock, which makes
// RevokeIfLive an atomic compare-and-set just like the SQL UPDATE.
type FakeRefreshRepo struct {
	records map[uuid.UUID]*refresh.Record
	lock    sync.RWMutex

	// FailPurge makes PurgeStale return an error, for sweeper tests.
	FailPurge bool
}

func NewFakeRefreshRepo() *FakeRefreshRepo {
	return &FakeRefreshRepo{
		records: make(map[uuid.UUID]*refresh.Record),
	}
}

func (fr *FakeRefreshRepo) Create(ctx context.Context, record *refresh.Record) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	for _, existing := range fr.records {
		if existing.TokenHash == record.TokenHash && existing.Live() {
			return errors.Wrap(serviceErrors.ErrDuplicateTokenHash, "FakeRefreshRepo.Create")
		}
	}

	cp := *record
	fr.records[record.ID] = &cp
	return nil
}

func (fr *FakeRefreshRepo) GetByHash(ctx context.Context, tokenHash string, includeDeleted bool) (*refresh.Record, error) {
	fr.lock.RLock()
	defer fr.lock.RUnlock()

	var found *refresh.Record
	for _, rec := range fr.records {
		if rec.TokenHash != tokenHash {
			continue
		}
		if rec.DeletedAt != nil && !includeDeleted {
			continue
		}
		// Prefer the live row; fall back to the most recently created dead one.
		if rec.Live() {
			found = rec
			break
		}
		if found == nil || rec.CreatedAt.After(found.CreatedAt) {
			found = rec
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (fr *FakeRefreshRepo) RevokeIfLive(ctx context.Context, id uuid.UUID, reason refresh.Reason, at time.Time) (bool, error) {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	rec, ok := fr.records[id]
	if !ok || !rec.Live() {
		return false, nil
	}
	rec.Revoked = true
	rec.RevokedAt = &at
	rec.RevokedReason = &reason
	return true, nil
}

func (fr *FakeRefreshRepo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	rec, ok := fr.records[id]
	if !ok {
		return errors.Wrap(serviceErrors.ErrNotFound, "FakeRefreshRepo.SoftDelete")
	}
	if rec.DeletedAt == nil {
		rec.DeletedAt = &at
	}
	return nil
}

func (fr *FakeRefreshRepo) RevokeAllForUser(ctx context.Context, userID string, reason refresh.Reason, at time.Time) (int64, error) {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	var count int64
	for _, rec := range fr.records {
		if rec.UserID != userID || !rec.Live() {
			continue
		}
		rec.Revoked = true
		rec.RevokedAt = &at
		rec.RevokedReason = &reason
		rec.DeletedAt = &at
		count++
	}
	return count, nil
}

func (fr *FakeRefreshRepo) ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]*refresh.Record, error) {
	fr.lock.RLock()
	defer fr.lock.RUnlock()

	records := make([]*refresh.Record, 0)
	for _, rec := range fr.records {
		if rec.UserID != userID || !rec.Live() || rec.Expired(now) {
			continue
		}
		cp := *rec
		records = append(records, &cp)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LastUsedAt.After(records[j].LastUsedAt)
	})

	return records, nil
}

func (fr *FakeRefreshRepo) RevokeByID(ctx context.Context, id uuid.UUID, userID string, reason refresh.Reason, at time.Time) (bool, error) {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	rec, ok := fr.records[id]
	if !ok || rec.UserID != userID || !rec.Live() {
		return false, nil
	}
	rec.Revoked = true
	rec.RevokedAt = &at
	rec.RevokedReason = &reason
	rec.DeletedAt = &at
	return true, nil
}

func (fr *FakeRefreshRepo) PurgeStale(ctx context.Context, now time.Time, idleWindow, revokedRetention time.Duration) (int64, error) {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	if fr.FailPurge {
		return 0, errors.Wrap(serviceErrors.ErrPersistence, "FakeRefreshRepo.PurgeStale")
	}

	var count int64
	for id, rec := range fr.records {
		// Revoked rows keep their full retention window so replays stay
		// detectable; only never-revoked rows purge on expiry or idleness.
		var stale bool
		if rec.RevokedAt != nil {
			stale = now.Sub(*rec.RevokedAt) > revokedRetention
		} else {
			stale = rec.Expired(now) || rec.Idle(now, idleWindow)
		}
		if stale {
			delete(fr.records, id)
			count++
		}
	}
	return count, nil
}

// Get returns a copy of the stored record, for test assertions.
func (fr *FakeRefreshRepo) Get(id uuid.UUID) (*refresh.Record, bool) {
	fr.lock.RLock()
	defer fr.lock.RUnlock()
	rec, ok := fr.records[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// Len returns the number of stored records, for test assertions.
func (fr *FakeRefreshRepo) Len() int {
	fr.lock.RLock()
	defer fr.lock.RUnlock()
	return len(fr.records)
}
