package sessions

import (
	"time"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-session-service/internal/utils"
	"github.com/jrsteele09/go-session-service/refresh"
)

// SessionSummary is the non-sensitive projection of an active session
// returned to "list my devices" callers. Digests and plaintext tokens
// never leave the store.
type SessionSummary struct {
	ID         uuid.UUID `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
}

func summaryFromRecord(record *refresh.Record) SessionSummary {
	return SessionSummary{
		ID:         record.ID,
		CreatedAt:  record.CreatedAt,
		LastUsedAt: record.LastUsedAt,
		ExpiresAt:  record.ExpiresAt,
		UserAgent:  utils.Value(record.UserAgent),
		IPAddress:  utils.Value(record.IPAddress),
	}
}
