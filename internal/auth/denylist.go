package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistKeyPrefix = "denylist:token:"

// TokenDenylist revokes tokens before their natural expiry.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisDenylist stores revoked token IDs in Redis with a TTL matching
// the token's remaining lifetime.
type RedisDenylist struct {
	client *redis.Client
}

// NewRedisDenylist builds the denylist over an existing client.
func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client}
}

// Revoke marks the token ID as revoked until ttl elapses.
func (d *RedisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, denylistKeyPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether the token ID has been revoked. Lookup
// failures are treated as not revoked so an unreachable Redis does not
// lock every caller out.
func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+jti).Result()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}
