package assessment

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/learncheck/learncheck/internal/cache"
)

// ContentProvider fetches tutorial content for question generation.
type ContentProvider interface {
	TutorialContent(ctx context.Context, tutorialID string) (TutorialContent, error)
}

// QuestionGenerator produces questions from tutorial text and per-answer
// feedback (requires env GENERATOR_API_KEY).
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, text string, count int) (Assessment, error)
	GenerateFeedback(ctx context.Context, req FeedbackRequest) (string, error)
}

// PreferencesProvider fetches display preferences from the user profile.
type PreferencesProvider interface {
	UserPreferences(ctx context.Context, userID string) (UserPreferences, error)
}

// FeedbackRequest asks the generator to explain a learner's answer.
type FeedbackRequest struct {
	Question       string `json:"question"`
	SelectedOption string `json:"selectedOption"`
	CorrectOption  string `json:"correctOption"`
	IsCorrect      bool   `json:"isCorrect"`
}

// ErrGenerationInFlight signals that another process holds the generation
// lock and the pool did not appear within the wait budget. Callers retry
// via the queue's backoff.
var ErrGenerationInFlight = errors.New("pool generation already in flight")

const (
	lockWaitAttempts = 3
	lockWaitInterval = 2 * time.Second
)

// Pipeline is the pool-building core shared by the worker and the
// orchestrator's synchronous fallback: ensure a question pool exists for a
// tutorial, sample from it, and compose the response with user preferences.
type Pipeline struct {
	pools   *PoolStore
	prefs   *PrefsStore
	lock    *GenerationLock
	content ContentProvider
	gen     QuestionGenerator
	profile PreferencesProvider
	logger  zerolog.Logger

	poolSize int
	perQuiz  int
}

// PipelineOptions sizes the generated pool and the per-serve sample.
type PipelineOptions struct {
	PoolSize         int
	QuestionsPerQuiz int
}

func NewPipeline(
	store cache.Cache,
	content ContentProvider,
	gen QuestionGenerator,
	profile PreferencesProvider,
	opts PipelineOptions,
	logger zerolog.Logger,
) *Pipeline {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 18
	}
	if opts.QuestionsPerQuiz <= 0 {
		opts.QuestionsPerQuiz = 3
	}
	return &Pipeline{
		pools:    NewPoolStore(store),
		prefs:    NewPrefsStore(store),
		lock:     NewGenerationLock(store),
		content:  content,
		gen:      gen,
		profile:  profile,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		poolSize: opts.PoolSize,
		perQuiz:  opts.QuestionsPerQuiz,
	}
}

// QuestionsPerQuiz exposes the configured sample size.
func (p *Pipeline) QuestionsPerQuiz() int { return p.perQuiz }

// Pools exposes the underlying pool store.
func (p *Pipeline) Pools() *PoolStore { return p.pools }

// EnsurePool returns the question pool for tutorialID, generating and
// caching it when absent. fromCache reports whether an existing pool was
// reused. Generation happens under a per-tutorial distributed lock
// (acquire-before-generate, release in defer); when another process holds
// the lock this waits briefly for the pool to appear and otherwise returns
// ErrGenerationInFlight.
func (p *Pipeline) EnsurePool(ctx context.Context, tutorialID string, skipCache bool) (Assessment, bool, error) {
	if !skipCache {
		if pool, ok := p.pools.Get(ctx, tutorialID); ok {
			return *pool, true, nil
		}
	}

	release, acquired := p.lock.Acquire(ctx, tutorialID)
	if !acquired {
		return p.awaitPool(ctx, tutorialID)
	}
	defer release()

	// Another holder may have finished between our miss and the acquire.
	if !skipCache {
		if pool, ok := p.pools.Get(ctx, tutorialID); ok {
			return *pool, true, nil
		}
	}

	pool, err := p.generatePool(ctx, tutorialID)
	if err != nil {
		return Assessment{}, false, err
	}
	p.pools.Set(ctx, tutorialID, pool)
	p.logger.Info().Str("tutorial_id", tutorialID).
		Int("questions", len(pool.Questions)).Msg("quiz pool generated and cached")
	return pool, false, nil
}

func (p *Pipeline) awaitPool(ctx context.Context, tutorialID string) (Assessment, bool, error) {
	for i := 0; i < lockWaitAttempts; i++ {
		select {
		case <-ctx.Done():
			return Assessment{}, false, ctx.Err()
		case <-time.After(lockWaitInterval):
		}
		if pool, ok := p.pools.Get(ctx, tutorialID); ok {
			return *pool, true, nil
		}
	}
	return Assessment{}, false, ErrGenerationInFlight
}

func (p *Pipeline) generatePool(ctx context.Context, tutorialID string) (Assessment, error) {
	tut, err := p.content.TutorialContent(ctx, tutorialID)
	if err != nil {
		return Assessment{}, err
	}
	pool, err := p.gen.GenerateQuestions(ctx, tut.Content, p.poolSize)
	if err != nil {
		return Assessment{}, err
	}
	pool.CachedAt = time.Now().UTC().Format(time.RFC3339)
	return pool, nil
}

// Preferences is a cache-first preference fetch. Upstream failures degrade
// to defaults; a quiz should never be blocked on display settings.
func (p *Pipeline) Preferences(ctx context.Context, userID string) UserPreferences {
	if prefs, ok := p.prefs.Get(ctx, userID); ok {
		return *prefs
	}
	prefs, err := p.profile.UserPreferences(ctx, userID)
	if err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID).Msg("preferences fetch failed, using defaults")
		return DefaultPreferences()
	}
	p.prefs.Set(ctx, userID, prefs)
	return prefs
}

// BuildResponse runs the full serve path: ensure pool, sample, preferences.
func (p *Pipeline) BuildResponse(ctx context.Context, tutorialID, userID string, skipCache bool) (AssessmentResponse, error) {
	pool, fromCache, err := p.EnsurePool(ctx, tutorialID, skipCache)
	if err != nil {
		return AssessmentResponse{}, err
	}
	return AssessmentResponse{
		Assessment:      SampleQuestions(pool, p.perQuiz),
		UserPreferences: p.Preferences(ctx, userID),
		FromCache:       fromCache,
	}, nil
}
