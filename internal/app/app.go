package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/learncheck/learncheck/internal/assessment"
	"github.com/learncheck/learncheck/internal/cache"
	"github.com/learncheck/learncheck/internal/config"
	"github.com/learncheck/learncheck/internal/content"
	"github.com/learncheck/learncheck/internal/generator"
	"github.com/learncheck/learncheck/internal/logging"
	"github.com/learncheck/learncheck/internal/profile"
	"github.com/learncheck/learncheck/internal/progress"
	"github.com/learncheck/learncheck/internal/queue"
	"github.com/learncheck/learncheck/internal/server"
)

// Application aggregates shared infrastructure for the API service.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps the logger, Redis, optional Postgres, the assessment
// orchestrator, and the HTTP server. Redis being down does not fail
// bootstrap: the cache layer degrades to misses and the orchestrator
// falls back to synchronous generation.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	if cfg.Generator.APIKey == "" {
		return nil, fmt.Errorf("GENERATOR_API_KEY must be configured")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	store := cache.NewStore(redisClient, logger)
	if err := store.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable at startup; continuing degraded")
	}

	var pool *pgxpool.Pool
	if cfg.PostgresEnabled() {
		connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
			cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)
		var err error
		pool, err = pgxpool.New(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	} else {
		logger.Info().Msg("postgres not configured; progress is cache-only")
	}

	jobQueue := queue.New(redisClient, logger, queue.Options{
		MaxAttempts:  cfg.Queue.MaxAttempts,
		BackoffBase:  cfg.Queue.BackoffBase,
		RetentionTTL: cfg.Queue.RetentionTTL,
	})

	contentClient := content.NewClient(content.Config{
		BaseURL: cfg.Content.URL,
		Timeout: cfg.Content.Timeout,
	}, logger)
	generatorClient := generator.NewClient(generator.Config{
		BaseURL: cfg.Generator.URL,
		APIKey:  cfg.Generator.APIKey,
		Timeout: cfg.Generator.Timeout,
	}, logger)
	profileClient := profile.NewClient(profile.Config{
		BaseURL: cfg.ProfileURL(),
		Timeout: cfg.Profile.Timeout,
	}, logger)

	pipeline := assessment.NewPipeline(store, contentClient, generatorClient, profileClient,
		assessment.PipelineOptions{
			PoolSize:         cfg.Quiz.PoolSize,
			QuestionsPerQuiz: cfg.Quiz.QuestionsPerQuiz,
		}, logger)

	assessmentSvc := assessment.NewService(store, pipeline, jobQueue, assessment.ServiceOptions{
		RateLimitWindow: cfg.RateLimit.Window,
		RateLimitMax:    cfg.RateLimit.MaxRequests,
	}, logger)

	var progressRepo *progress.Repository
	if pool != nil {
		progressRepo = progress.NewRepository(pool)
	}
	progressSvc := progress.NewService(store, progressRepo, logger)

	apiServer := server.NewHTTPServer(cfg, logger, store, pool, server.Handlers{
		Assessment: assessment.NewHTTPHandler(assessmentSvc, logger),
		Progress:   progress.NewHTTPHandler(progressSvc, logger),
	})

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
