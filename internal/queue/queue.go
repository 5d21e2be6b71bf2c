package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	waitingKey = "learncheck:queue:waiting"
	delayedKey = "learncheck:queue:delayed"
	jobKeyFmt  = "learncheck:queue:job:%s"

	dequeueBlock    = 5 * time.Second
	promoteInterval = time.Second
	promoteBatch    = 100
)

// State is the lifecycle state of a queued job.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateUnknown   State = "unknown"
)

// Terminal reports whether the state admits re-enqueueing.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateUnknown
}

// Job is a dequeued unit of work.
type Job struct {
	ID      string
	Payload []byte
	Attempt int
}

// Options governs retry and retention behavior.
type Options struct {
	MaxAttempts  int
	BackoffBase  time.Duration
	RetentionTTL time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.RetentionTTL <= 0 {
		o.RetentionTTL = time.Hour
	}
}

// Queue is a durable, at-least-once Redis-backed work queue keyed by a
// caller-supplied deduplication identifier. Waiting jobs live in a list,
// retry-delayed jobs in a sorted set scored by ready time, and per-job
// bookkeeping (payload, state, attempts) in a hash that expires a bounded
// time after the job reaches a terminal state.
type Queue struct {
	client *redis.Client
	logger zerolog.Logger
	opts   Options
}

// New builds a queue over the given Redis client. A nil client yields an
// unavailable queue; callers are expected to fall back to synchronous work.
func New(client *redis.Client, logger zerolog.Logger, opts Options) *Queue {
	opts.applyDefaults()
	return &Queue{
		client: client,
		logger: logger.With().Str("component", "queue").Logger(),
		opts:   opts,
	}
}

// Available reports whether the queue backend is configured.
func (q *Queue) Available() bool {
	return q != nil && q.client != nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf(jobKeyFmt, jobID)
}

// Enqueue adds a job unless one with the same ID is already in flight.
// Returns false when an existing waiting/active/delayed job satisfied the
// request. A short race window where two enqueuers both observe no job is
// tolerated; the worker's per-tutorial generation lock is the backstop
// against duplicate collaborator work.
func (q *Queue) Enqueue(ctx context.Context, jobID string, payload []byte) (bool, error) {
	if !q.Available() {
		return false, fmt.Errorf("queue unavailable")
	}

	state, err := q.JobState(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !state.Terminal() {
		q.logger.Debug().Str("job_id", jobID).Str("state", string(state)).Msg("enqueue skipped, job in flight")
		return false, nil
	}

	key := jobKey(jobID)
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"payload":      payload,
		"state":        string(StateWaiting),
		"attempts":     0,
		"max_attempts": q.opts.MaxAttempts,
		"progress":     0,
		"created_at":   time.Now().UTC().Format(time.RFC3339),
		"last_error":   "",
	})
	pipe.Persist(ctx, key)
	pipe.LPush(ctx, waitingKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("enqueue %s: %w", jobID, err)
	}

	q.logger.Info().Str("job_id", jobID).Msg("job enqueued")
	return true, nil
}

// InFlight reports whether a job with this ID is currently waiting, active,
// or retry-delayed. Lookup errors read as not-in-flight; the caller falls
// through to Enqueue, which re-checks.
func (q *Queue) InFlight(ctx context.Context, jobID string) bool {
	state, err := q.JobState(ctx, jobID)
	return err == nil && !state.Terminal()
}

// JobState returns the current state for jobID, or StateUnknown when the
// queue has no record of it.
func (q *Queue) JobState(ctx context.Context, jobID string) (State, error) {
	if !q.Available() {
		return StateUnknown, fmt.Errorf("queue unavailable")
	}
	raw, err := q.client.HGet(ctx, jobKey(jobID), "state").Result()
	if err == redis.Nil {
		return StateUnknown, nil
	}
	if err != nil {
		return StateUnknown, fmt.Errorf("job state %s: %w", jobID, err)
	}
	return normalizeState(raw), nil
}

func normalizeState(raw string) State {
	switch State(raw) {
	case StateWaiting, StateActive, StateDelayed, StateCompleted, StateFailed:
		return State(raw)
	default:
		return StateUnknown
	}
}

// Dequeue blocks for a bounded interval waiting for work. Returns nil when
// no job became available before the block timeout.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	if !q.Available() {
		return nil, fmt.Errorf("queue unavailable")
	}
	res, err := q.client.BRPop(ctx, dequeueBlock, waitingKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	jobID := res[1]

	key := jobKey(jobID)
	attempt, err := q.client.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", jobID, err)
	}
	if err := q.client.HSet(ctx, key, "state", string(StateActive)).Err(); err != nil {
		return nil, fmt.Errorf("claim %s: %w", jobID, err)
	}
	payload, err := q.client.HGet(ctx, key, "payload").Bytes()
	if err != nil {
		return nil, fmt.Errorf("payload %s: %w", jobID, err)
	}

	return &Job{ID: jobID, Payload: payload, Attempt: int(attempt)}, nil
}

// Complete marks the job terminal-successful and starts retention expiry.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	key := jobKey(jobID)
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, "state", string(StateCompleted), "progress", 100)
	pipe.Expire(ctx, key, q.opts.RetentionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Fail records a processing failure. While attempts remain the job is
// rescheduled with exponential backoff and Fail reports retried=true;
// otherwise the job is marked terminally failed and expires after the
// retention TTL.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) (retried bool, err error) {
	key := jobKey(job.ID)

	if job.Attempt < q.opts.MaxAttempts {
		delay := q.backoffDelay(job.Attempt)
		readyAt := time.Now().Add(delay)
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, key, "state", string(StateDelayed), "last_error", cause.Error())
		pipe.ZAdd(ctx, delayedKey, redis.Z{Score: float64(readyAt.UnixMilli()), Member: job.ID})
		if _, err := pipe.Exec(ctx); err != nil {
			return false, err
		}
		q.logger.Warn().Str("job_id", job.ID).Int("attempt", job.Attempt).
			Dur("delay", delay).Err(cause).Msg("job retry scheduled")
		return true, nil
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, "state", string(StateFailed), "last_error", cause.Error())
	pipe.Expire(ctx, key, q.opts.RetentionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	q.logger.Error().Str("job_id", job.ID).Int("attempt", job.Attempt).
		Err(cause).Msg("job failed permanently")
	return false, nil
}

// backoffDelay returns the exponential delay before retry number attempt+1.
func (q *Queue) backoffDelay(attempt int) time.Duration {
	delay := q.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// UpdateProgress records coarse job progress for observability. No caller
// reads it; failures are deliberately ignored.
func (q *Queue) UpdateProgress(ctx context.Context, jobID string, pct int) {
	if !q.Available() {
		return
	}
	if err := q.client.HSet(ctx, jobKey(jobID), "progress", pct).Err(); err != nil {
		q.logger.Debug().Err(err).Str("job_id", jobID).Msg("progress update failed")
	}
}

// RunPromoter moves retry-delayed jobs whose backoff elapsed back onto the
// waiting list. Blocks until context cancellation. ZRem makes promotion
// single-winner when several promoters run.
func (q *Queue) RunPromoter(ctx context.Context) error {
	if !q.Available() {
		return nil
	}
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := q.promoteDue(ctx); err != nil && ctx.Err() == nil {
				q.logger.Warn().Err(err).Msg("delayed job promotion failed")
			}
		}
	}
}

func (q *Queue) promoteDue(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())
	due, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return err
	}

	for _, jobID := range due {
		removed, err := q.client.ZRem(ctx, delayedKey, jobID).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue // another promoter won
		}
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, jobKey(jobID), "state", string(StateWaiting))
		pipe.LPush(ctx, waitingKey, jobID)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		q.logger.Info().Str("job_id", jobID).Msg("delayed job promoted")
	}
	return nil
}
