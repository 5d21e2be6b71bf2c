package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNilClientStoreFailsOpen(t *testing.T) {
	s := NewStore(nil, zerolog.Nop())
	ctx := context.Background()

	assert.False(t, s.Available())

	_, ok := s.Get(ctx, "learncheck:quiz:pool:tut-1")
	assert.False(t, ok, "get degrades to a miss")

	s.Set(ctx, "k", []byte("v"), time.Minute)
	s.Delete(ctx, "k")
	assert.False(t, s.Exists(ctx, "k"))

	assert.Zero(t, s.IncrementWithExpiry(ctx, "learncheck:ratelimit:user-1", time.Minute),
		"zero count means no limiting applied")
	assert.True(t, s.SetNX(ctx, "learncheck:lock:generation:tut-1", []byte("token"), time.Minute),
		"locks grant when there is no backend to coordinate through")

	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.Close())
}

func TestKeySchema(t *testing.T) {
	assert.Equal(t, "learncheck:quiz:pool:closures-101", QuizPoolKey("closures-101"))
	assert.Equal(t, "learncheck:session:closures-101:user-42", ActiveSessionKey("closures-101", "user-42"))
	assert.Equal(t, "learncheck:prefs:user:user-42", PreferencesKey("user-42"))
	assert.Equal(t, "learncheck:ratelimit:user-42", RateLimitKey("user-42"))
	assert.Equal(t, "learncheck:lock:generation:closures-101", GenerationLockKey("closures-101"))
	assert.Equal(t, "learncheck:progress:user-42:closures-101", ProgressKey("user-42", "closures-101"))
	assert.Equal(t, "assessment:closures-101:user-42", JobResultKey("closures-101", "user-42"))
}
