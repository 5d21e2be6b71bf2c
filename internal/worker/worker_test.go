package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learncheck/learncheck/internal/assessment"
	"github.com/learncheck/learncheck/internal/queue"
)

type kvCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newKVCache() *kvCache { return &kvCache{data: map[string][]byte{}} }

func (c *kvCache) Available() bool { return true }

func (c *kvCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *kvCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *kvCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *kvCache) Exists(_ context.Context, key string) bool {
	_, ok := c.Get(context.Background(), key)
	return ok
}

func (c *kvCache) IncrementWithExpiry(_ context.Context, _ string, _ time.Duration) int64 {
	return 0
}

func (c *kvCache) SetNX(_ context.Context, key string, value []byte, _ time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false
	}
	c.data[key] = value
	return true
}

type stubConsumer struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	progress  []int
	retryOn   bool
}

func (s *stubConsumer) Dequeue(_ context.Context) (*queue.Job, error) { return nil, nil }

func (s *stubConsumer) Complete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, jobID)
	return nil
}

func (s *stubConsumer) Fail(_ context.Context, job *queue.Job, _ error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, job.ID)
	return s.retryOn, nil
}

func (s *stubConsumer) UpdateProgress(_ context.Context, _ string, pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, pct)
}

func (s *stubConsumer) RunPromoter(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type fixedContent struct{ err error }

func (f *fixedContent) TutorialContent(_ context.Context, tutorialID string) (assessment.TutorialContent, error) {
	if f.err != nil {
		return assessment.TutorialContent{}, f.err
	}
	return assessment.TutorialContent{TutorialID: tutorialID, Content: "goroutines are cheap"}, nil
}

type fixedGenerator struct{ err error }

func (f *fixedGenerator) GenerateQuestions(_ context.Context, _ string, count int) (assessment.Assessment, error) {
	if f.err != nil {
		return assessment.Assessment{}, f.err
	}
	questions := make([]assessment.QuizQuestion, count)
	for i := range questions {
		questions[i] = assessment.QuizQuestion{
			ID:              string(rune('a' + i)),
			Options:         []assessment.QuizOption{{ID: "1"}, {ID: "2"}},
			CorrectOptionID: "1",
		}
	}
	return assessment.Assessment{Questions: questions}, nil
}

func (f *fixedGenerator) GenerateFeedback(_ context.Context, _ assessment.FeedbackRequest) (string, error) {
	return "", errors.New("not used")
}

type fixedProfile struct{}

func (fixedProfile) UserPreferences(_ context.Context, _ string) (assessment.UserPreferences, error) {
	return assessment.DefaultPreferences(), nil
}

func newTestWorker(t *testing.T, content *fixedContent, gen *fixedGenerator) (*Worker, *stubConsumer, *kvCache) {
	t.Helper()
	store := newKVCache()
	pipeline := assessment.NewPipeline(store, content, gen, fixedProfile{},
		assessment.PipelineOptions{PoolSize: 6, QuestionsPerQuiz: 3}, zerolog.Nop())
	consumer := &stubConsumer{}
	w := New(consumer, pipeline, store, Options{Concurrency: 1, JobsPerMinute: 600}, zerolog.Nop())
	return w, consumer, store
}

func generationJob(t *testing.T, tutorialID, userID string, attempt int) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(assessment.JobPayload{TutorialID: tutorialID, UserID: userID})
	require.NoError(t, err)
	return &queue.Job{ID: assessment.JobID(userID, tutorialID), Payload: payload, Attempt: attempt}
}

func TestHandleSuccessWritesCompletedResult(t *testing.T) {
	w, consumer, store := newTestWorker(t, &fixedContent{}, &fixedGenerator{})
	job := generationJob(t, "tut-1", "user-1", 1)

	w.handle(context.Background(), job)

	assert.Equal(t, []string{job.ID}, consumer.completed)
	assert.Empty(t, consumer.failed)

	result, ok := assessment.NewResultStore(store).Get(context.Background(), "tut-1", "user-1")
	require.True(t, ok)
	completed, ok := result.(assessment.JobCompleted)
	require.True(t, ok)
	assert.Len(t, completed.Data.Assessment.Questions, 3)
	assert.False(t, completed.CompletedAt.IsZero())

	// The shared pool is cached for subsequent users of the tutorial.
	_, ok = assessment.NewPoolStore(store).Get(context.Background(), "tut-1")
	assert.True(t, ok)
}

func TestHandleFailureWritesFailedResultAndRetries(t *testing.T) {
	w, consumer, store := newTestWorker(t, &fixedContent{}, &fixedGenerator{err: errors.New("model overloaded")})
	consumer.retryOn = true
	job := generationJob(t, "tut-1", "user-1", 1)

	w.handle(context.Background(), job)

	assert.Empty(t, consumer.completed)
	assert.Equal(t, []string{job.ID}, consumer.failed)

	// Pollers observe the failure even while the retry is pending.
	result, ok := assessment.NewResultStore(store).Get(context.Background(), "tut-1", "user-1")
	require.True(t, ok)
	failed, ok := result.(assessment.JobFailed)
	require.True(t, ok)
	assert.Contains(t, failed.Message, "model overloaded")
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	w, _, store := newTestWorker(t, &fixedContent{}, &fixedGenerator{})

	err := w.process(context.Background(), &queue.Job{ID: "bad", Payload: []byte("not json"), Attempt: 1})
	assert.Error(t, err)

	// No result key can be written without a decoded (tutorial, user) pair.
	assert.Empty(t, store.data)
}

func TestProcessReportsProgress(t *testing.T) {
	w, consumer, _ := newTestWorker(t, &fixedContent{}, &fixedGenerator{})
	job := generationJob(t, "tut-1", "user-1", 1)

	require.NoError(t, w.process(context.Background(), job))
	assert.Equal(t, []int{10, 20, 80, 90, 100}, consumer.progress)
}

func TestSuccessfulRetryOverwritesFailedResult(t *testing.T) {
	gen := &fixedGenerator{err: errors.New("transient")}
	w, consumer, store := newTestWorker(t, &fixedContent{}, gen)
	consumer.retryOn = true
	ctx := context.Background()

	w.handle(ctx, generationJob(t, "tut-1", "user-1", 1))
	result, ok := assessment.NewResultStore(store).Get(ctx, "tut-1", "user-1")
	require.True(t, ok)
	_, isFailed := result.(assessment.JobFailed)
	assert.True(t, isFailed)

	gen.err = nil
	w.handle(ctx, generationJob(t, "tut-1", "user-1", 2))
	result, ok = assessment.NewResultStore(store).Get(ctx, "tut-1", "user-1")
	require.True(t, ok)
	_, isCompleted := result.(assessment.JobCompleted)
	assert.True(t, isCompleted)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	w, _, _ := newTestWorker(t, &fixedContent{}, &fixedGenerator{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
