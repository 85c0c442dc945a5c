package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sybilwatch/trustgraph/internal/monitoring"
)

// Tests run against the in-memory fallback path; no live Redis.

func newFallbackLimiter(cfg Config) *RateLimiter {
	return NewRateLimiter(&RedisClient{enabled: false}, cfg, monitoring.NewMetrics())
}

func TestAllowIPFallbackBlocksAfterBurst(t *testing.T) {
	limiter := newFallbackLimiter(Config{
		IPPerMinute:     5,
		AuditPerHour:    2,
		BurstMultiplier: 1,
	})

	ctx := context.Background()

	// Burst capacity is max(limit*multiplier, 5) = 5.
	for i := 0; i < 5; i++ {
		result, err := limiter.AllowIP(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
	}

	result, err := limiter.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, result.Allowed, "6th request should be blocked")
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestAllowIPIndependentKeys(t *testing.T) {
	limiter := newFallbackLimiter(Config{
		IPPerMinute:     5,
		AuditPerHour:    2,
		BurstMultiplier: 1,
	})

	ctx := context.Background()

	// Exhaust one IP's budget.
	for i := 0; i < 6; i++ {
		_, err := limiter.AllowIP(ctx, "10.0.0.1")
		require.NoError(t, err)
	}

	// A different IP still has its full budget.
	result, err := limiter.AllowIP(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestAuditBudgetSeparateFromIPBudget(t *testing.T) {
	limiter := newFallbackLimiter(Config{
		IPPerMinute:     5,
		AuditPerHour:    2,
		BurstMultiplier: 1,
	})

	ctx := context.Background()
	ip := "10.0.0.9"

	// Audit budget: burst max(2,5) = 5 allowed, then blocked.
	blocked := false
	for i := 0; i < 10; i++ {
		result, err := limiter.AllowAudit(ctx, ip)
		require.NoError(t, err)
		if !result.Allowed {
			blocked = true
			break
		}
	}
	assert.True(t, blocked, "audit budget should exhaust")

	// Exhausting audits does not touch the general budget.
	result, err := limiter.AllowIP(ctx, ip)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestInvalidateIPFallback(t *testing.T) {
	limiter := newFallbackLimiter(Config{
		IPPerMinute:     5,
		AuditPerHour:    2,
		BurstMultiplier: 1,
	})

	ctx := context.Background()
	ip := "10.0.0.3"

	for i := 0; i < 6; i++ {
		_, err := limiter.AllowIP(ctx, ip)
		require.NoError(t, err)
	}
	result, err := limiter.AllowIP(ctx, ip)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	require.NoError(t, limiter.InvalidateIP(ctx, ip))

	result, err = limiter.AllowIP(ctx, ip)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "invalidation should restore the budget")
}

func TestInvalidateAllFallback(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())

	ctx := context.Background()
	for _, ip := range []string{"10.1.0.1", "10.1.0.2", "10.1.0.3"} {
		_, err := limiter.AllowIP(ctx, ip)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, limiter.GetStats()["fallback_limiters"].(int))

	require.NoError(t, limiter.InvalidateAll(ctx))
	assert.Equal(t, 0, limiter.GetStats()["fallback_limiters"].(int))
}

func TestGetStatsFallback(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())

	stats := limiter.GetStats()
	assert.False(t, stats["redis_enabled"].(bool))
	assert.Equal(t, 120, stats["ip_per_minute"].(int))
	assert.Equal(t, 12, stats["audit_per_hour"].(int))
}

func TestAllowIPConcurrent(t *testing.T) {
	limiter := newFallbackLimiter(Config{
		IPPerMinute:     1000,
		AuditPerHour:    10,
		BurstMultiplier: 2,
	})

	ctx := context.Background()
	done := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 25; j++ {
				_, err := limiter.AllowIP(ctx, "10.2.0.1")
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}
