package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"learncheck"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:4000"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Redis     Redis
	Postgres  Postgres
	Content   Content
	Generator Generator
	Profile   Profile
	RateLimit RateLimit
	Queue     Queue
	Worker    Worker
	Quiz      Quiz
	CORS      CORS
}

// Redis holds cache + queue connection settings. The platform degrades
// rather than failing when Redis is unreachable, so nothing here is required.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Postgres captures connection info for the durable progress store.
// An empty Host disables Postgres entirely; progress then lives in the
// cache only, matching how the rest of the system fails open.
type Postgres struct {
	Host     string `env:"PG_HOST"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER"`
	Password string `env:"PG_PASSWORD"`
	Database string `env:"PG_DATABASE" envDefault:"learncheck"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Content configures the tutorial content provider.
type Content struct {
	URL     string        `env:"CONTENT_API_URL" envDefault:"http://localhost:3003"`
	Timeout time.Duration `env:"CONTENT_TIMEOUT" envDefault:"10s"`
}

// Generator configures the LLM question-generation service.
// APIKey is the one setting whose absence is fatal at startup.
type Generator struct {
	URL     string        `env:"GENERATOR_URL" envDefault:"http://localhost:3002"`
	APIKey  string        `env:"GENERATOR_API_KEY"`
	Timeout time.Duration `env:"GENERATOR_TIMEOUT" envDefault:"30s"`
}

// Profile configures the user preferences provider. When URL is empty the
// content provider's base URL is reused (both live on the same upstream).
type Profile struct {
	URL     string        `env:"PROFILE_API_URL"`
	Timeout time.Duration `env:"PROFILE_TIMEOUT" envDefault:"10s"`
}

// RateLimit bounds per-user quiz generation requests.
type RateLimit struct {
	Window      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	MaxRequests int64         `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"5"`
}

// Queue governs job retry and retention behavior.
type Queue struct {
	MaxAttempts  int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	BackoffBase  time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"2s"`
	RetentionTTL time.Duration `env:"QUEUE_RETENTION_TTL" envDefault:"1h"`
}

// Worker bounds the generation worker's concurrency and collaborator load.
type Worker struct {
	Concurrency   int `env:"WORKER_CONCURRENCY" envDefault:"5"`
	JobsPerMinute int `env:"WORKER_JOBS_PER_MINUTE" envDefault:"10"`
}

// Quiz groups pool sizing defaults.
type Quiz struct {
	PoolSize         int `env:"POOL_SIZE" envDefault:"18"`
	QuestionsPerQuiz int `env:"QUESTIONS_PER_QUIZ" envDefault:"3"`
}

// CORS holds Cross-Origin Resource Sharing configuration. The widget is
// embedded via iframe, so the allowed origins list matters in production.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// PostgresEnabled reports whether a durable progress store is configured.
func (a *App) PostgresEnabled() bool {
	return a.Postgres.Host != ""
}

// ProfileURL resolves the preferences provider base URL.
func (a *App) ProfileURL() string {
	if a.Profile.URL != "" {
		return a.Profile.URL
	}
	return a.Content.URL
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
