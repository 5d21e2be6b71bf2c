package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/learncheck/learncheck/internal/assessment"
	"github.com/learncheck/learncheck/internal/cache"
	"github.com/learncheck/learncheck/internal/config"
	"github.com/learncheck/learncheck/internal/content"
	"github.com/learncheck/learncheck/internal/generator"
	"github.com/learncheck/learncheck/internal/logging"
	"github.com/learncheck/learncheck/internal/profile"
	"github.com/learncheck/learncheck/internal/queue"
	"github.com/learncheck/learncheck/internal/worker"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load("configs/.env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Name+"-worker", cfg.Env, cfg.LogLevel)

	if cfg.Generator.APIKey == "" {
		logger.Fatal().Msg("GENERATOR_API_KEY must be configured")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	store := cache.NewStore(redisClient, logger)
	if err := store.Ping(ctx); err != nil {
		// The worker is useless without Redis (the queue lives there), but
		// it retries through the dequeue loop rather than crash-looping.
		logger.Warn().Err(err).Msg("redis unreachable at startup")
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

	w := worker.New(jobQueue, pipeline, store, worker.Options{
		Concurrency:   cfg.Worker.Concurrency,
		JobsPerMinute: cfg.Worker.JobsPerMinute,
	}, logger)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker exited")
	}
	logger.Info().Msg("worker shutdown complete")
}
