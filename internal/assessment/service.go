package assessment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/learncheck/learncheck/internal/cache"
)

// Enqueuer is the job queue surface the orchestrator needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string, payload []byte) (bool, error)
	InFlight(ctx context.Context, jobID string) bool
	Available() bool
}

// RequestOptions map the endpoint's fresh/new_session flags.
type RequestOptions struct {
	SkipCache  bool
	NewSession bool
}

// Outcome is the orchestrator's answer to an assessment request. Exactly one
// field is non-nil: Ready carries a servable response, Accepted tells the
// client to poll, Failed surfaces a terminal generation error.
type Outcome struct {
	Ready    *AssessmentResponse
	Accepted *AcceptedResponse
	Failed   *GenerationError
}

// ServiceOptions carries tunables the orchestrator enforces per request.
type ServiceOptions struct {
	RateLimitWindow time.Duration
	RateLimitMax    int64
}

func (o *ServiceOptions) applyDefaults() {
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = time.Minute
	}
	if o.RateLimitMax <= 0 {
		o.RateLimitMax = 5
	}
}

// Service is the request-facing assessment orchestrator. It decides per
// request whether to serve the active session, sample a warm pool, return a
// finished job result, or enqueue generation work. It communicates with the
// worker only through the cache (job-result keys) and the queue (job state).
type Service struct {
	store    cache.Cache
	sessions *SessionStore
	results  *ResultStore
	pipeline *Pipeline
	queue    Enqueuer
	logger   zerolog.Logger
	opts     ServiceOptions
}

func NewService(store cache.Cache, pipeline *Pipeline, queue Enqueuer, opts ServiceOptions, logger zerolog.Logger) *Service {
	opts.applyDefaults()
	return &Service{
		store:    store,
		sessions: NewSessionStore(store),
		results:  NewResultStore(store),
		pipeline: pipeline,
		queue:    queue,
		logger:   logger.With().Str("component", "assessment_service").Logger(),
		opts:     opts,
	}
}

// GetOrCreateAssessment implements the idempotent accept/poll decision
// ladder. The session check happens before the pool check happens before
// enqueue, per request; concurrent requests for one (tutorial,user) pair may
// race past each other but converge on a single job via enqueue dedup. Only
// requests that start generation count against the per-user rate limit;
// cache hits and polls of an in-flight job are free.
func (s *Service) GetOrCreateAssessment(ctx context.Context, tutorialID, userID string, opts RequestOptions) (Outcome, error) {
	if opts.NewSession {
		s.sessions.Delete(ctx, tutorialID, userID)
	} else {
		if session, ok := s.sessions.Get(ctx, tutorialID, userID); ok {
			requestOutcomes.WithLabelValues("session_hit").Inc()
			return Outcome{Ready: session}, nil
		}
	}

	if !opts.SkipCache {
		if pool, ok := s.pipeline.Pools().Get(ctx, tutorialID); ok {
			resp := AssessmentResponse{
				Assessment:      SampleQuestions(*pool, s.pipeline.QuestionsPerQuiz()),
				UserPreferences: s.pipeline.Preferences(ctx, userID),
				FromCache:       true,
			}
			s.sessions.Set(ctx, tutorialID, userID, resp)
			requestOutcomes.WithLabelValues("pool_hit").Inc()
			return Outcome{Ready: &resp}, nil
		}
	}

	if result, ok := s.results.Get(ctx, tutorialID, userID); ok {
		switch r := result.(type) {
		case JobCompleted:
			requestOutcomes.WithLabelValues("job_completed").Inc()
			return Outcome{Ready: &r.Data}, nil
		case JobFailed:
			s.logger.Warn().Str("tutorial_id", tutorialID).Str("user_id", userID).
				Str("cause", r.Message).Msg("surfacing failed job result")
			requestOutcomes.WithLabelValues("job_failed").Inc()
			return Outcome{Failed: &GenerationError{
				Message:  "An unexpected error occurred during quiz generation",
				CanRetry: true,
			}}, nil
		default:
			return Outcome{}, &GenerationError{Message: "unrecognized job result", CanRetry: true}
		}
	}

	jobID := JobID(userID, tutorialID)

	// A poll of a job that is already running triggers no generation, so it
	// must not be charged against the user's generation budget.
	if s.queue.Available() && s.queue.InFlight(ctx, jobID) {
		requestOutcomes.WithLabelValues("poll_in_flight").Inc()
		return Outcome{Accepted: &AcceptedResponse{
			Status:     "accepted",
			Message:    "Quiz generation started. Please poll this endpoint.",
			JobID:      jobID,
			TutorialID: tutorialID,
			UserID:     userID,
		}}, nil
	}

	// Only a request that actually starts generation spends budget: a fresh
	// enqueue here, or the synchronous fallback below.
	if err := s.checkRateLimit(ctx, userID); err != nil {
		requestOutcomes.WithLabelValues("rate_limited").Inc()
		return Outcome{}, err
	}

	if err := s.enqueueJob(ctx, jobID, JobPayload{
		TutorialID: tutorialID,
		UserID:     userID,
		SkipCache:  opts.SkipCache,
	}); err != nil {
		// Queue down: degrade to synchronous generation rather than erroring.
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("enqueue failed, generating synchronously")
		return s.generateDirect(ctx, tutorialID, userID, opts.SkipCache)
	}

	requestOutcomes.WithLabelValues("accepted").Inc()
	return Outcome{Accepted: &AcceptedResponse{
		Status:     "accepted",
		Message:    "Quiz generation started. Please poll this endpoint.",
		JobID:      jobID,
		TutorialID: tutorialID,
		UserID:     userID,
	}}, nil
}

func (s *Service) checkRateLimit(ctx context.Context, userID string) error {
	count := s.store.IncrementWithExpiry(ctx, cache.RateLimitKey(userID), s.opts.RateLimitWindow)
	if count > s.opts.RateLimitMax {
		s.logger.Warn().Str("user_id", userID).Int64("count", count).Msg("rate limit exceeded")
		return &RateLimitError{RetryAfter: s.opts.RateLimitWindow}
	}
	return nil
}

func (s *Service) enqueueJob(ctx context.Context, jobID string, payload JobPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.queue.Enqueue(ctx, jobID, data)
	return err
}

// generateDirect is the queue-less fallback: run the pipeline inline and
// serve the result. Used when Redis (and with it the queue) is unreachable,
// so callers still get a quiz instead of an error.
func (s *Service) generateDirect(ctx context.Context, tutorialID, userID string, skipCache bool) (Outcome, error) {
	resp, err := s.pipeline.BuildResponse(ctx, tutorialID, userID, skipCache)
	if err != nil {
		s.logger.Error().Err(err).Str("tutorial_id", tutorialID).Msg("synchronous generation failed")
		requestOutcomes.WithLabelValues("direct_failed").Inc()
		return Outcome{Failed: &GenerationError{
			Message:  "An unexpected error occurred during quiz generation",
			CanRetry: true,
		}}, nil
	}
	s.sessions.Set(ctx, tutorialID, userID, resp)
	requestOutcomes.WithLabelValues("direct").Inc()
	return Outcome{Ready: &resp}, nil
}

// PrepareAssessment enqueues a pool-warming job for a tutorial and returns
// immediately; the frontend fires this when a learner opens a tutorial so
// the pool is warm before they reach the quiz. With the queue down the warm
// is handed to a detached task with its own error boundary.
func (s *Service) PrepareAssessment(ctx context.Context, tutorialID string) {
	jobID := PregenerateJobID(tutorialID)
	err := s.enqueueJob(ctx, jobID, JobPayload{
		TutorialID: tutorialID,
		UserID:     PregenerateUserID,
		SkipCache:  false,
	})
	if err == nil {
		s.logger.Info().Str("tutorial_id", tutorialID).Msg("pregeneration job enqueued")
		return
	}

	s.logger.Warn().Err(err).Str("tutorial_id", tutorialID).Msg("pregeneration enqueue failed, warming inline")
	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, _, err := s.pipeline.EnsurePool(warmCtx, tutorialID, false); err != nil {
			s.logger.Warn().Err(err).Str("tutorial_id", tutorialID).Msg("background pool warm failed")
		}
	}()
}

// GetUserPreferences is the cache-first preference fetch exposed over HTTP.
func (s *Service) GetUserPreferences(ctx context.Context, userID string) UserPreferences {
	return s.pipeline.Preferences(ctx, userID)
}

// GenerateFeedback asks the generator to explain a learner's answer.
func (s *Service) GenerateFeedback(ctx context.Context, req FeedbackRequest) (string, error) {
	return s.pipeline.gen.GenerateFeedback(ctx, req)
}
