package denylist

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	serviceErrors "github.com/jrsteele09/go-session-service/internal/errors"
)

const denylistKeyPrefix = "adl"

// RedisDenylist shares watermarks across processes. Keys expire on their
// own once every covered access token has expired, so Cleanup is a no-op.
type RedisDenylist struct {
	redis  *redis.Client
	prefix string
}

func NewRedisDenylist(redisClient *redis.Client) *RedisDenylist {
	return &RedisDenylist{
		redis:  redisClient,
		prefix: denylistKeyPrefix,
	}
}

func (d *RedisDenylist) key(userID string) string {
	return d.prefix + ":" + userID
}

func (d *RedisDenylist) Block(ctx context.Context, userID string, blockedAt, until time.Time) error {
	ttl := until.Sub(blockedAt)
	if ttl <= 0 {
		return nil
	}
	err := d.redis.Set(ctx, d.key(userID), strconv.FormatInt(blockedAt.UnixNano(), 10), ttl).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", serviceErrors.ErrDenylistUnavailable, err)
	}
	return nil
}

func (d *RedisDenylist) IsBlocked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	val, err := d.redis.Get(ctx, d.key(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", serviceErrors.ErrDenylistUnavailable, err)
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%w: corrupt watermark: %v", serviceErrors.ErrDenylistUnavailable, err)
	}
	return !issuedAt.After(time.Unix(0, nanos)), nil
}

// Cleanup is handled by Redis key expiry.
func (d *RedisDenylist) Cleanup(ctx context.Context) error {
	return nil
}

var _ Denylist = (*RedisDenylist)(nil)
