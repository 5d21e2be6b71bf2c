package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/learncheck/learncheck/internal/assessment"
	"github.com/learncheck/learncheck/internal/cache"
	"github.com/learncheck/learncheck/internal/queue"
)

// Consumer is the queue surface the worker needs.
type Consumer interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, job *queue.Job, cause error) (retried bool, err error)
	UpdateProgress(ctx context.Context, jobID string, pct int)
	RunPromoter(ctx context.Context) error
}

// Options bounds the worker's parallelism and collaborator load.
type Options struct {
	Concurrency   int
	JobsPerMinute int
}

func (o *Options) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.JobsPerMinute <= 0 {
		o.JobsPerMinute = 10
	}
}

// Worker drains the assessment job queue: bounded concurrency, a throughput
// limiter protecting the LLM upstream, and a durable JobResult written for
// every terminal outcome. It talks to the orchestrator only through the
// result store and queue state.
type Worker struct {
	queue    Consumer
	pipeline *assessment.Pipeline
	results  *assessment.ResultStore
	limiter  *rate.Limiter
	logger   zerolog.Logger
	opts     Options
}

func New(q Consumer, pipeline *assessment.Pipeline, store cache.Cache, opts Options, logger zerolog.Logger) *Worker {
	opts.applyDefaults()
	perSecond := rate.Limit(float64(opts.JobsPerMinute) / 60.0)
	return &Worker{
		queue:    q,
		pipeline: pipeline,
		results:  assessment.NewResultStore(store),
		limiter:  rate.NewLimiter(perSecond, opts.JobsPerMinute),
		logger:   logger.With().Str("component", "generation_worker").Logger(),
		opts:     opts,
	}
}

// Run blocks until context cancellation, consuming jobs with the configured
// concurrency alongside the delayed-job promoter.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.opts.Concurrency).
		Int("jobs_per_minute", w.opts.JobsPerMinute).Msg("generation worker starting")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.queue.RunPromoter(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("promoter stopped")
		}
	}()

	for i := 0; i < w.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}

	wg.Wait()
	w.logger.Info().Msg("generation worker stopped")
	return ctx.Err()
}

func (w *Worker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn().Err(err).Msg("dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *queue.Job) {
	start := time.Now()
	logger := w.logger.With().Str("job_id", job.ID).Int("attempt", job.Attempt).Logger()
	logger.Info().Msg("processing job")

	err := w.process(ctx, job)
	jobDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		if cerr := w.queue.Complete(ctx, job.ID); cerr != nil {
			logger.Warn().Err(cerr).Msg("completion bookkeeping failed")
		}
		jobsProcessed.WithLabelValues("completed").Inc()
		logger.Info().Dur("took", time.Since(start)).Msg("job completed")
		return
	}

	retried, ferr := w.queue.Fail(ctx, job, err)
	if ferr != nil {
		logger.Error().Err(ferr).Msg("failure bookkeeping failed")
	}
	if retried {
		jobsProcessed.WithLabelValues("retried").Inc()
	} else {
		jobsProcessed.WithLabelValues("failed").Inc()
	}
	logger.Error().Err(err).Bool("retried", retried).Msg("job attempt failed")
}

// process runs one generation attempt. On failure a JobFailed result is
// persisted under the job-result key before the error propagates to the
// queue's retry policy, so pollers always observe the latest attempt.
func (w *Worker) process(ctx context.Context, job *queue.Job) error {
	var payload assessment.JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode job payload: %w", err)
	}
	w.queue.UpdateProgress(ctx, job.ID, 10)

	resp, err := w.build(ctx, job, payload)
	if err != nil {
		w.results.Set(ctx, payload.TutorialID, payload.UserID, assessment.JobFailed{
			Message:  err.Error(),
			FailedAt: time.Now().UTC(),
		})
		return err
	}

	w.results.Set(ctx, payload.TutorialID, payload.UserID, assessment.JobCompleted{
		Data:        resp,
		CompletedAt: time.Now().UTC(),
	})
	w.queue.UpdateProgress(ctx, job.ID, 100)
	return nil
}

func (w *Worker) build(ctx context.Context, job *queue.Job, payload assessment.JobPayload) (assessment.AssessmentResponse, error) {
	w.queue.UpdateProgress(ctx, job.ID, 20)

	pool, fromCache, err := w.pipeline.EnsurePool(ctx, payload.TutorialID, payload.SkipCache)
	if err != nil {
		return assessment.AssessmentResponse{}, err
	}
	w.queue.UpdateProgress(ctx, job.ID, 80)

	sampled := assessment.SampleQuestions(pool, w.pipeline.QuestionsPerQuiz())
	prefs := w.pipeline.Preferences(ctx, payload.UserID)
	w.queue.UpdateProgress(ctx, job.ID, 90)

	return assessment.AssessmentResponse{
		Assessment:      sampled,
		UserPreferences: prefs,
		FromCache:       fromCache,
	}, nil
}
