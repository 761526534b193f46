package config

import "time"

type TokenConfig interface {
	GetRefreshTokenLength() int
	GetRefreshTokenExpiry() time.Duration
	GetIdleWindow() time.Duration
	GetRevokedRetention() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetAccessTokenSecret() string
	GetIssuer() string
	GetAudience() string
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return 14 * 24 * time.Hour
}

// GetIdleWindow returns how long a refresh token may go unused before it is
// invalidated, shorter than the absolute expiry.
func (Tokens) GetIdleWindow() time.Duration {
	return 7 * 24 * time.Hour
}

// GetRevokedRetention returns how long revoked records are kept queryable
// for reuse detection before the sweeper purges them.
func (Tokens) GetRevokedRetention() time.Duration {
	return 30 * 24 * time.Hour
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return 15 * time.Minute
}

func (Tokens) GetAccessTokenSecret() string {
	return GetEnv("ACCESS_TOKEN_SECRET", "")
}

func (Tokens) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", "go-session-service")
}

func (Tokens) GetAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "api")
}
