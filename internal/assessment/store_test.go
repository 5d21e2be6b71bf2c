package assessment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learncheck/learncheck/internal/cache"
)

func TestGenerationLockExcludesSecondHolder(t *testing.T) {
	mc := newMemCache()
	lock := NewGenerationLock(mc)
	ctx := context.Background()

	release, acquired := lock.Acquire(ctx, "tut-1")
	require.True(t, acquired)
	_, again := lock.Acquire(ctx, "tut-1")
	assert.False(t, again)

	release()
	release2, reacquired := lock.Acquire(ctx, "tut-1")
	require.True(t, reacquired)
	release2()
}

func TestStaleReleaseKeepsSuccessorLock(t *testing.T) {
	mc := newMemCache()
	lock := NewGenerationLock(mc)
	ctx := context.Background()

	staleRelease, acquired := lock.Acquire(ctx, "tut-1")
	require.True(t, acquired)

	// The first holder's TTL lapses and a successor takes the lock.
	mc.Delete(ctx, cache.GenerationLockKey("tut-1"))
	release, acquired := lock.Acquire(ctx, "tut-1")
	require.True(t, acquired)

	// The stale holder releasing late must not drop the successor's lock.
	staleRelease()
	assert.True(t, mc.has(cache.GenerationLockKey("tut-1")))
	_, stolen := lock.Acquire(ctx, "tut-1")
	assert.False(t, stolen)

	release()
	assert.False(t, mc.has(cache.GenerationLockKey("tut-1")))
}
