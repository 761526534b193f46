package postgres

// Schema creates the refresh token table. The unique index on token_hash is
// partial: uniqueness applies to live rows only, so a soft-deleted row
// frees its hash slot while staying queryable for reuse detection.
const Schema = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
	id             UUID PRIMARY KEY,
	user_id        TEXT NOT NULL,
	token_hash     TEXT NOT NULL,
	expires_at     TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	last_used_at   TIMESTAMPTZ NOT NULL,
	is_revoked     BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at     TIMESTAMPTZ,
	revoked_reason TEXT,
	user_agent     TEXT,
	ip_address     TEXT,
	deleted_at     TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS refresh_tokens_live_hash_idx
	ON refresh_tokens (token_hash) WHERE deleted_at IS NULL;

CREATE INDEX IF NOT EXISTS refresh_tokens_user_id_idx
	ON refresh_tokens (user_id);
`
