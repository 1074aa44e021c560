package signal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/arena/internal/adapters/signal"
)

func TestJoinRateLimiter_DeniesOverLimit(t *testing.T) {
	rl := signal.NewJoinRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("alice"))
	}
	assert.False(t, rl.Allow("alice"))

	// Other identities have their own window.
	assert.True(t, rl.Allow("bob"))
}

func TestJoinRateLimiter_WindowSlides(t *testing.T) {
	rl := signal.NewJoinRateLimiter(1, 50*time.Millisecond)

	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("alice"))
}
