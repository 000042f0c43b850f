package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEveryDisabledWhenIntervalIsZero(t *testing.T) {
	limiter := NewEvery("test", 0)
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow())
	}
}

func TestNewEveryAllowsOnePerInterval(t *testing.T) {
	limiter := NewEvery("test", time.Hour)
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}

func TestWaitHonoursCancellation(t *testing.T) {
	limiter := NewEvery("google_books", time.Hour)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait for google_books")
}

func TestSetKeepsLimitersIndependent(t *testing.T) {
	set := NewSet(time.Hour)

	google := set.For("google_books")
	assert.Same(t, google, set.For("google_books"))
	assert.Equal(t, "google_books", google.Name())

	require.True(t, google.Allow())
	assert.False(t, google.Allow())

	assert.True(t, set.For("open_library").Allow(), "a throttled source must not delay another")
	assert.Equal(t, time.Hour, set.Interval())
}

func TestNewAllowsBurstUpToRate(t *testing.T) {
	limiter := New("open_library", 2)
	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
	assert.Equal(t, "open_library", limiter.Name())
}
