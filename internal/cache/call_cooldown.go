package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// CallCooldown allows one crisis call per user per window across all instances.
type CallCooldown struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewCallCooldown(client *redisv9.Client, ttl time.Duration) *CallCooldown {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &CallCooldown{client: client, ttl: ttl}
}

// Acquire reports whether the caller won the slot for this user.
func (c *CallCooldown) Acquire(ctx context.Context, userID uint) (bool, error) {
	ok, err := c.client.SetNX(ctx, cooldownKey(userID), "1", c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown setnx: %w", err)
	}
	return ok, nil
}

func (c *CallCooldown) Release(ctx context.Context, userID uint) error {
	if err := c.client.Del(ctx, cooldownKey(userID)).Err(); err != nil {
		return fmt.Errorf("cooldown release: %w", err)
	}
	return nil
}

func cooldownKey(userID uint) string {
	return fmt.Sprintf("mindmate:crisis:cooldown:%d", userID)
}
