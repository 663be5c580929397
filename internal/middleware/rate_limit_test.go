package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := rl.Allow("user-a")
		require.True(t, allowed, "запрос %d должен пройти", i+1)
		assert.Equal(t, 2-i, remaining)
	}

	// N+1-й запрос внутри окна отклоняется
	allowed, remaining, reset := rl.Allow("user-a")
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.False(t, reset.IsZero())
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	rl.nowFunc = func() time.Time { return now }

	allowed, _, _ := rl.Allow("user-b")
	require.True(t, allowed)
	allowed, _, _ = rl.Allow("user-b")
	require.True(t, allowed)
	allowed, _, _ = rl.Allow("user-b")
	require.False(t, allowed)

	// После истечения окна счётчик сбрасывается
	now = now.Add(time.Minute + time.Second)
	allowed, remaining, _ := rl.Allow("user-b")
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
}

func TestRateLimiterIsolatesCallers(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	allowed, _, _ := rl.Allow("user-a")
	require.True(t, allowed)
	allowed, _, _ = rl.Allow("user-a")
	require.False(t, allowed)

	// Лимит одного пользователя не влияет на другого
	allowed, _, _ = rl.Allow("user-b")
	assert.True(t, allowed)
}

func TestRateLimiterConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(100, time.Minute)

	done := make(chan int)
	for g := 0; g < 10; g++ {
		go func() {
			granted := 0
			for i := 0; i < 20; i++ {
				if ok, _, _ := rl.Allow("shared"); ok {
					granted++
				}
			}
			done <- granted
		}()
	}

	total := 0
	for g := 0; g < 10; g++ {
		total += <-done
	}

	// Из 200 конкурентных запросов проходит ровно лимит
	assert.Equal(t, 100, total)
}
