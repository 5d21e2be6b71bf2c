package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readyBody = `{
	"assessment": {"questions": [{"id":"q1","correctOptionId":"a"}]},
	"userPreferences": {"theme":"light"},
	"fromCache": false
}`

const acceptedBody = `{
	"status": "accepted",
	"message": "Quiz generation started. Please poll this endpoint.",
	"jobId": "user-1-tut-1",
	"tutorialId": "tut-1",
	"userId": "user-1"
}`

func fastOptions() Options {
	return Options{Interval: 5 * time.Millisecond, MaxPolls: 5}
}

func TestFetchImmediatelyReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/assessment", r.URL.Path)
		assert.Equal(t, "tut-1", r.URL.Query().Get("tutorial_id"))
		_, _ = w.Write([]byte(readyBody))
	}))
	defer srv.Close()

	p := New(srv.URL, nil, fastOptions(), zerolog.Nop())
	resp, err := p.Fetch(context.Background(), "tut-1", "user-1", FetchOptions{})
	require.NoError(t, err)
	require.Len(t, resp.Assessment.Questions, 1)
	assert.Equal(t, "q1", resp.Assessment.Questions[0].ID)
}

func TestFetchPollsUntilReady(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		// After the first request the client must repeat plain parameters:
		// re-sending new_session would discard the job it is waiting on.
		if n > 1 {
			assert.Empty(t, r.URL.Query().Get("new_session"))
		}
		if n < 4 {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(acceptedBody))
			return
		}
		_, _ = w.Write([]byte(readyBody))
	}))
	defer srv.Close()

	p := New(srv.URL, nil, fastOptions(), zerolog.Nop())
	resp, err := p.Fetch(context.Background(), "tut-1", "user-1", FetchOptions{NewSession: true})
	require.NoError(t, err)
	assert.Len(t, resp.Assessment.Questions, 1)
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestFetchTimesOutAfterBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(acceptedBody))
	}))
	defer srv.Close()

	p := New(srv.URL, nil, fastOptions(), zerolog.Nop())
	_, err := p.Fetch(context.Background(), "tut-1", "user-1", FetchOptions{})
	assert.ErrorIs(t, err, ErrPollTimeout)
	// Initial request plus MaxPolls+1 loop entries.
	assert.EqualValues(t, 7, atomic.LoadInt32(&calls))
}

func TestFetchSurfacesTerminalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"generation_failed","message":"An unexpected error occurred during quiz generation","canRetry":true}`))
	}))
	defer srv.Close()

	p := New(srv.URL, nil, fastOptions(), zerolog.Nop())
	_, err := p.Fetch(context.Background(), "tut-1", "user-1", FetchOptions{})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.Equal(t, "generation_failed", reqErr.Code)
	assert.True(t, reqErr.CanRetry)
}

func TestFetchSurfacesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","message":"slow down","retryAfter":60}`))
	}))
	defer srv.Close()

	p := New(srv.URL, nil, fastOptions(), zerolog.Nop())
	_, err := p.Fetch(context.Background(), "tut-1", "user-1", FetchOptions{})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusTooManyRequests, reqErr.StatusCode)
	assert.Equal(t, 60, reqErr.RetryAfter)
}

func TestFetchStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(acceptedBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := New(srv.URL, nil, Options{Interval: time.Hour, MaxPolls: 100}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := p.Fetch(ctx, "tut-1", "user-1", FetchOptions{})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not stop after cancellation")
	}
}
