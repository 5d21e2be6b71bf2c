package assessment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/learncheck/learncheck/internal/cache"
)

// Cache lifetimes. The cache store owns every key's lifecycle via TTL.
const (
	PoolTTL    = 24 * time.Hour
	SessionTTL = time.Hour
	ResultTTL  = time.Hour
	PrefsTTL   = 5 * time.Minute
	LockTTL    = 5 * time.Minute
)

// PoolStore caches the full generated question pool per tutorial. Pools are
// tutorial-scoped and shared across users; they are immutable once written
// until TTL expiry.
type PoolStore struct {
	cache cache.Cache
}

func NewPoolStore(c cache.Cache) *PoolStore {
	return &PoolStore{cache: c}
}

func (s *PoolStore) Get(ctx context.Context, tutorialID string) (*Assessment, bool) {
	data, ok := s.cache.Get(ctx, cache.QuizPoolKey(tutorialID))
	if !ok {
		return nil, false
	}
	var pool Assessment
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, false
	}
	return &pool, true
}

func (s *PoolStore) Set(ctx context.Context, tutorialID string, pool Assessment) {
	data, err := json.Marshal(pool)
	if err != nil {
		return
	}
	s.cache.Set(ctx, cache.QuizPoolKey(tutorialID), data, PoolTTL)
}

// SessionStore snapshots the exact questions served to one user so a page
// reload returns identical questions instead of a fresh random sample.
type SessionStore struct {
	cache cache.Cache
}

func NewSessionStore(c cache.Cache) *SessionStore {
	return &SessionStore{cache: c}
}

func (s *SessionStore) Get(ctx context.Context, tutorialID, userID string) (*AssessmentResponse, bool) {
	data, ok := s.cache.Get(ctx, cache.ActiveSessionKey(tutorialID, userID))
	if !ok {
		return nil, false
	}
	var resp AssessmentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (s *SessionStore) Set(ctx context.Context, tutorialID, userID string, resp AssessmentResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	s.cache.Set(ctx, cache.ActiveSessionKey(tutorialID, userID), data, SessionTTL)
}

func (s *SessionStore) Delete(ctx context.Context, tutorialID, userID string) {
	s.cache.Delete(ctx, cache.ActiveSessionKey(tutorialID, userID))
}

// ResultStore persists job outcomes under the job-result key, decoupled from
// queue retention so a completed result survives queue cleanup.
type ResultStore struct {
	cache cache.Cache
}

func NewResultStore(c cache.Cache) *ResultStore {
	return &ResultStore{cache: c}
}

func (s *ResultStore) Get(ctx context.Context, tutorialID, userID string) (JobResult, bool) {
	data, ok := s.cache.Get(ctx, cache.JobResultKey(tutorialID, userID))
	if !ok {
		return nil, false
	}
	result, err := DecodeJobResult(data)
	if err != nil {
		return nil, false
	}
	return result, true
}

func (s *ResultStore) Set(ctx context.Context, tutorialID, userID string, result JobResult) {
	data, err := EncodeJobResult(result)
	if err != nil {
		return
	}
	s.cache.Set(ctx, cache.JobResultKey(tutorialID, userID), data, ResultTTL)
}

// PrefsStore caches upstream user preferences for a short window so profile
// edits show up quickly while read traffic stays off the upstream.
type PrefsStore struct {
	cache cache.Cache
}

func NewPrefsStore(c cache.Cache) *PrefsStore {
	return &PrefsStore{cache: c}
}

func (s *PrefsStore) Get(ctx context.Context, userID string) (*UserPreferences, bool) {
	data, ok := s.cache.Get(ctx, cache.PreferencesKey(userID))
	if !ok {
		return nil, false
	}
	var prefs UserPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, false
	}
	return &prefs, true
}

func (s *PrefsStore) Set(ctx context.Context, userID string, prefs UserPreferences) {
	data, err := json.Marshal(prefs)
	if err != nil {
		return
	}
	s.cache.Set(ctx, cache.PreferencesKey(userID), data, PrefsTTL)
}

// GenerationLock is a short-TTL distributed lock acquired before pool
// generation so concurrent cold requests for one tutorial produce a single
// collaborator call. Fail-open: with the cache down the lock always grants,
// trading duplicate generation for availability.
type GenerationLock struct {
	cache cache.Cache
}

func NewGenerationLock(c cache.Cache) *GenerationLock {
	return &GenerationLock{cache: c}
}

// Acquire attempts to take the lock for tutorialID. On success it returns a
// release func which must be called in a defer.
func (l *GenerationLock) Acquire(ctx context.Context, tutorialID string) (release func(), acquired bool) {
	key := cache.GenerationLockKey(tutorialID)
	token := uuid.NewString()
	if !l.cache.SetNX(ctx, key, []byte(token), LockTTL) {
		return nil, false
	}
	return func() {
		// Delete only our own token: a holder that outlived the TTL must
		// not drop a successor's lock.
		if current, ok := l.cache.Get(ctx, key); ok && string(current) == token {
			l.cache.Delete(ctx, key)
		}
	}, true
}
