package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "learncheck", cfg.Name)
	assert.Equal(t, "0.0.0.0:4000", cfg.HTTPAddr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 18, cfg.Quiz.PoolSize)
	assert.Equal(t, 3, cfg.Quiz.QuestionsPerQuiz)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.EqualValues(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Queue.BackoffBase)
	assert.Equal(t, 5, cfg.Worker.Concurrency)
	assert.Equal(t, 10, cfg.Worker.JobsPerMinute)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("POOL_SIZE", "24")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "10")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://learn.example.com,https://widget.example.com")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, 24, cfg.Quiz.PoolSize)
	assert.EqualValues(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, []string{"https://learn.example.com", "https://widget.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestPostgresEnabled(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.PostgresEnabled())

	t.Setenv("PG_HOST", "db.internal")
	cfg, err = Load(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.PostgresEnabled())
}

func TestProfileURLFallsBackToContent(t *testing.T) {
	t.Setenv("CONTENT_API_URL", "http://content:3003")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://content:3003", cfg.ProfileURL())

	t.Setenv("PROFILE_API_URL", "http://profile:3004")
	cfg, err = Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://profile:3004", cfg.ProfileURL())
}
