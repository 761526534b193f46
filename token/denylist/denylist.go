// Package denylist is the server-side kill switch for still-unexpired
// access tokens. Revoking a refresh session does not recall the access
// tokens already in flight; resource servers that cannot wait out the
// access-token lifetime consult the denylist instead.
//
// Entries are per-user watermarks, not per-token: after a cascading
// revocation every access token issued before the watermark is rejected,
// which matches the engine's inability to tell which token leaked.
package denylist

import (
	"context"
	"sync"
	"time"
)

// Denylist records block-before watermarks per user.
type Denylist interface {
	// Block rejects all of the user's access tokens issued at or before
	// blockedAt. The entry may be forgotten once until has passed, since
	// every token it covers has expired by then.
	Block(ctx context.Context, userID string, blockedAt, until time.Time) error

	// IsBlocked reports whether a token issued at issuedAt for the user
	// should be rejected.
	IsBlocked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

type entry struct {
	blockedAt time.Time
	until     time.Time
}

// InMemoryDenylist is a simple in-memory implementation
type InMemoryDenylist struct {
	blocked map[string]entry
	nowFunc func() time.Time
	mu      sync.RWMutex
}

func NewInMemoryDenylist() *InMemoryDenylist {
	return &InMemoryDenylist{
		blocked: make(map[string]entry),
		nowFunc: time.Now,
	}
}

func (d *InMemoryDenylist) Block(ctx context.Context, userID string, blockedAt, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.blocked[userID]; ok && existing.blockedAt.After(blockedAt) {
		return nil // a later watermark already covers this one
	}
	d.blocked[userID] = entry{blockedAt: blockedAt, until: until}
	return nil
}

func (d *InMemoryDenylist) IsBlocked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.blocked[userID]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(e.blockedAt), nil
}

func (d *InMemoryDenylist) Cleanup(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.nowFunc()
	for userID, e := range d.blocked {
		if now.After(e.until) {
			delete(d.blocked, userID)
		}
	}
	return nil
}

var _ Denylist = (*InMemoryDenylist)(nil)
