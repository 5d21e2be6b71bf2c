package generator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learncheck/learncheck/internal/assessment"
)

func options(ids ...string) []assessment.QuizOption {
	opts := make([]assessment.QuizOption, len(ids))
	for i, id := range ids {
		opts[i] = assessment.QuizOption{ID: id, Text: "option " + id}
	}
	return opts
}

func TestNormalizeQuestion(t *testing.T) {
	valid := wireQuestion{
		ID:           "q1",
		QuestionText: "What does defer do?",
		Options:      options("a", "b", "c"),
		CorrectID:    "b",
		Explanation:  "Defers run LIFO at function return.",
	}

	q, err := normalizeQuestion(valid)
	require.NoError(t, err)
	assert.Equal(t, "q1", q.ID)
	assert.Equal(t, "b", q.CorrectOptionID)
	assert.Len(t, q.Options, 3)
}

func TestNormalizeQuestionAssignsMissingID(t *testing.T) {
	q, err := normalizeQuestion(wireQuestion{
		QuestionText: "What is a goroutine?",
		Options:      options("a", "b"),
		CorrectID:    "a",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
}

func TestNormalizeQuestionRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		q    wireQuestion
	}{
		{"no text", wireQuestion{Options: options("a", "b"), CorrectID: "a"}},
		{"one option", wireQuestion{QuestionText: "q", Options: options("a"), CorrectID: "a"}},
		{"answer not in options", wireQuestion{QuestionText: "q", Options: options("a", "b"), CorrectID: "z"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalizeQuestion(tc.q)
			assert.Error(t, err)
		})
	}
}

func TestGenerateQuestionsDropsMalformedAndKeepsRest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/llm/generate-questions", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"questions":[
			{"questionText":"good","options":[{"id":"a"},{"id":"b"}],"correctOptionId":"a"},
			{"questionText":"bad","options":[{"id":"a"},{"id":"b"}],"correctOptionId":"z"}
		]}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "secret-key"}, zerolog.Nop())
	got, err := client.GenerateQuestions(context.Background(), "tutorial text", 2)
	require.NoError(t, err)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "good", got.Questions[0].QuestionText)
}

func TestGenerateQuestionsEmptySetIsBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"questions":[]}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := client.GenerateQuestions(context.Background(), "text", 3)

	var upErr *assessment.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, assessment.UpstreamBadPayload, upErr.Kind)
}

func TestGenerateQuestionsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := client.GenerateQuestions(context.Background(), "text", 3)

	var upErr *assessment.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, assessment.UpstreamUnavailable, upErr.Kind)
}

func TestGenerateFeedback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/llm/generate-feedback", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"feedback":"Right: closures capture by reference."}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	feedback, err := client.GenerateFeedback(context.Background(), assessment.FeedbackRequest{
		Question:       "What do closures capture?",
		SelectedOption: "references",
		CorrectOption:  "references",
		IsCorrect:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Right: closures capture by reference.", feedback)
}
