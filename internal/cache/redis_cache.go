package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "glowdesk:revoked:"

type RedisTokenRevoker struct {
	client *redis.Client
}

func NewRedisTokenRevoker(addr string, password string, db int) *RedisTokenRevoker {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTokenRevoker{client: client}
}

func (c *RedisTokenRevoker) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTokenRevoker) Close() error {
	return c.client.Close()
}

func (c *RedisTokenRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

func (c *RedisTokenRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
