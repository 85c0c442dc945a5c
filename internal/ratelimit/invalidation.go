package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// InvalidateIP removes every budget tracked for an IP, both the general
// and the audit scope. Used by the admin reset endpoint after a false
// positive block.
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) error {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()

		delete(rl.fallbackLimiters, fmt.Sprintf("ratelimit:ip:%s", ip))
		delete(rl.fallbackLimiters, fmt.Sprintf("ratelimit:audit:%s", ip))

		slog.Info("invalidated rate limits (in-memory)", "ip", ip)
		return nil
	}

	for _, pattern := range []string{
		fmt.Sprintf("ratelimit:ip:%s*", ip),
		fmt.Sprintf("ratelimit:audit:%s*", ip),
	} {
		if err := rl.deleteByPattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateAll removes every rate limit key. Emergency use only.
func (rl *RateLimiter) InvalidateAll(ctx context.Context) error {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()

		count := len(rl.fallbackLimiters)
		rl.fallbackLimiters = make(map[string]*rate.Limiter)

		slog.Warn("invalidated all rate limits (in-memory)", "count", count)
		return nil
	}

	slog.Warn("invalidating ALL rate limits")
	return rl.deleteByPattern(ctx, "ratelimit:*")
}

// deleteByPattern deletes Redis keys matching a pattern via SCAN.
func (rl *RateLimiter) deleteByPattern(ctx context.Context, pattern string) error {
	client := rl.redisClient.GetClient()

	var cursor uint64
	var deletedCount int
	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			deleted, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
			deletedCount += int(deleted)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	slog.Info("deleted rate limit keys", "pattern", pattern, "count", deletedCount)
	return nil
}
