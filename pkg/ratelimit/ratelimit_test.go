package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalRateLimiter()
	l.now = func() time.Time { return now }
	limit := Limit{Rate: 2, Period: time.Second, Burst: 3}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ip:1", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := l.Allow(ctx, "ip:1", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)

	other, err := l.Allow(ctx, "ip:2", limit)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(500 * time.Millisecond)
	res, err = l.Allow(ctx, "ip:1", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalRateLimiterRejectsInvalidLimit(t *testing.T) {
	_, err := NewLocalRateLimiter().Allow(context.Background(), "k", Limit{})
	assert.Error(t, err)
}

func TestLocalRateLimiterPrunesRefilledBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalRateLimiter()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	fast := Limit{Rate: 10, Period: time.Second, Burst: 10}
	for i := 0; i < 1000; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("ip:%d", i), fast)
		require.NoError(t, err)
	}
	slow := Limit{Rate: 1, Period: time.Hour, Burst: 2}
	for i := 0; i < 2; i++ {
		_, err := l.Allow(ctx, "ip:hot", slow)
		require.NoError(t, err)
	}
	assert.Equal(t, 1001, l.Len())

	now = now.Add(2 * DefaultPruneInterval)
	res, err := l.Allow(ctx, "ip:new", fast)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, l.Len())

	res, err = l.Allow(ctx, "ip:hot", slow)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}
