package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJoinLimiter_SlidingWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewJoinLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))
	assert.True(t, rl.Allow("other"), "keys are independent")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("k"))
}

func TestJoinLimiter_Disabled(t *testing.T) {
	var nilLimiter *JoinLimiter
	assert.True(t, nilLimiter.Allow("k"))
	nilLimiter.Sweep()

	rl := NewJoinLimiter(0, time.Minute)
	for j := 0; j < 100; j++ {
		assert.True(t, rl.Allow("k"))
	}
}

func TestJoinLimiter_SweepForgetsIdleKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewJoinLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(30 * time.Second)
	rl.Allow("new")
	now = now.Add(45 * time.Second)

	rl.Sweep()
	assert.NotContains(t, rl.history, "old")
	assert.Contains(t, rl.history, "new")
}
