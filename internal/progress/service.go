package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/learncheck/learncheck/internal/cache"
)

// ProgressTTL bounds the cached aggregate view. The durable attempt log, when
// configured, outlives it and is replayed on a cache miss.
const ProgressTTL = 24 * time.Hour

// adaptiveWindow is how many recent attempts feed the next-difficulty choice.
const adaptiveWindow = 3

var (
	ErrMissingTimestamp = errors.New("attempt timestamp is required")
	ErrMissingScore     = errors.New("attempt score is required")
)

// Service tracks per-(user, tutorial) attempt history. The cache is
// authoritative for reads; Postgres, when present, is a best-effort durable
// log used to rebuild the aggregate after cache loss.
type Service struct {
	store  cache.Cache
	repo   *Repository
	logger zerolog.Logger
}

// NewService builds the progress service. repo may be nil when no database is
// configured, in which case progress lives in the cache alone.
func NewService(store cache.Cache, repo *Repository, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		repo:   repo,
		logger: logger.With().Str("component", "progress").Logger(),
	}
}

// GetProgress returns the aggregate for one (user, tutorial), rebuilding it
// from the attempt log on a cache miss. A user with no history gets an empty
// aggregate, never an error.
func (s *Service) GetProgress(ctx context.Context, userID, tutorialID string) (Progress, error) {
	key := cache.ProgressKey(userID, tutorialID)
	if raw, ok := s.store.Get(ctx, key); ok {
		var p Progress
		if err := json.Unmarshal(raw, &p); err == nil {
			if p.NextDifficulty == "" {
				p.NextDifficulty = "medium"
			}
			return p, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable progress entry")
	}

	p := emptyProgress(userID, tutorialID)
	if s.repo == nil {
		return p, nil
	}

	attempts, err := s.repo.ListAttempts(ctx, userID, tutorialID)
	if err != nil {
		return Progress{}, fmt.Errorf("load attempts: %w", err)
	}
	if len(attempts) == 0 {
		return p, nil
	}

	p.Attempts = attempts
	recompute(&p)
	s.cacheProgress(ctx, key, p)
	return p, nil
}

// SaveProgress validates and appends one attempt, recomputes the aggregate,
// and writes it back. The durable insert is best-effort: a database failure
// is logged but never loses the cached update.
func (s *Service) SaveProgress(ctx context.Context, userID, tutorialID string, in AttemptInput) (Progress, error) {
	if in.Timestamp == "" {
		return Progress{}, ErrMissingTimestamp
	}
	if in.Score == nil {
		return Progress{}, ErrMissingScore
	}

	p, err := s.GetProgress(ctx, userID, tutorialID)
	if err != nil {
		return Progress{}, err
	}

	attempt := Attempt{
		AttemptNumber:  len(p.Attempts) + 1,
		Timestamp:      in.Timestamp,
		Score:          *in.Score,
		TotalQuestions: in.TotalQuestions,
		Difficulty:     in.Difficulty,
		TimeTaken:      in.TimeTaken,
		Answers:        in.Answers,
	}
	if attempt.TotalQuestions == 0 {
		attempt.TotalQuestions = len(in.Answers)
	}
	if attempt.Difficulty == "" {
		attempt.Difficulty = "medium"
	}

	p.Attempts = append(p.Attempts, attempt)
	recompute(&p)
	s.cacheProgress(ctx, cache.ProgressKey(userID, tutorialID), p)

	if s.repo != nil {
		if err := s.repo.InsertAttempt(ctx, userID, tutorialID, attempt); err != nil {
			s.logger.Error().Err(err).
				Str("user_id", userID).
				Str("tutorial_id", tutorialID).
				Msg("durable attempt insert failed")
		}
	}
	return p, nil
}

// NextDifficulty picks a difficulty for the user's next quiz from the average
// of their most recent attempts. Unknown users and lookup failures get medium.
func (s *Service) NextDifficulty(ctx context.Context, userID, tutorialID string) string {
	p, err := s.GetProgress(ctx, userID, tutorialID)
	if err != nil || p.NextDifficulty == "" {
		return "medium"
	}
	return p.NextDifficulty
}

func difficultyFor(attempts []Attempt) string {
	recent := attempts
	if len(recent) > adaptiveWindow {
		recent = recent[len(recent)-adaptiveWindow:]
	}
	var sum float64
	for _, a := range recent {
		sum += a.Score
	}
	avg := sum / float64(len(recent))
	switch {
	case avg >= 80:
		return "hard"
	case avg >= 60:
		return "medium"
	default:
		return "easy"
	}
}

func recompute(p *Progress) {
	p.TotalAttempts = len(p.Attempts)
	if p.TotalAttempts == 0 {
		p.AverageScore = "0.00"
		p.BestScore = 0
		p.LastAttempt = ""
		p.NextDifficulty = "medium"
		return
	}
	var sum, best float64
	for _, a := range p.Attempts {
		sum += a.Score
		if a.Score > best {
			best = a.Score
		}
	}
	p.AverageScore = fmt.Sprintf("%.2f", sum/float64(p.TotalAttempts))
	p.BestScore = best
	p.LastAttempt = p.Attempts[p.TotalAttempts-1].Timestamp
	p.NextDifficulty = difficultyFor(p.Attempts)
}

func emptyProgress(userID, tutorialID string) Progress {
	return Progress{
		UserID:         userID,
		TutorialID:     tutorialID,
		Attempts:       []Attempt{},
		AverageScore:   "0.00",
		NextDifficulty: "medium",
	}
}

func (s *Service) cacheProgress(ctx context.Context, key string, p Progress) {
	raw, err := json.Marshal(p)
	if err != nil {
		s.logger.Error().Err(err).Msg("progress marshal failed")
		return
	}
	s.store.Set(ctx, key, raw, ProgressTTL)
}
