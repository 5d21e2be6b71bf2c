package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/learncheck/learncheck/internal/assessment"
)

// Config holds connection details for the LLM question-generation service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements assessment.QuestionGenerator against the LLM service.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	generateURL string
	feedbackURL string
	logger      zerolog.Logger
}

var _ assessment.QuestionGenerator = (*Client)(nil)

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      cfg.APIKey,
		generateURL: base + "/api/llm/generate-questions",
		feedbackURL: base + "/api/llm/generate-feedback",
		logger:      logger.With().Str("component", "generator_client").Logger(),
	}
}

type generateRequest struct {
	Content string `json:"content"`
	Count   int    `json:"count"`
}

type wireQuestion struct {
	ID           string                  `json:"id"`
	QuestionText string                  `json:"questionText"`
	Options      []assessment.QuizOption `json:"options"`
	CorrectID    string                  `json:"correctOptionId"`
	Explanation  string                  `json:"explanation"`
}

type generateResponse struct {
	Data struct {
		Questions []wireQuestion `json:"questions"`
	} `json:"data"`
}

// GenerateQuestions asks the LLM service for a question pool from tutorial
// text. Responses are normalized: every question gets an ID and its answer
// key is verified against the option list.
func (c *Client) GenerateQuestions(ctx context.Context, text string, count int) (assessment.Assessment, error) {
	body, err := json.Marshal(generateRequest{Content: text, Count: count})
	if err != nil {
		return assessment.Assessment{}, err
	}

	var resp generateResponse
	if err := c.post(ctx, c.generateURL, body, &resp); err != nil {
		return assessment.Assessment{}, err
	}
	if len(resp.Data.Questions) == 0 {
		return assessment.Assessment{}, &assessment.UpstreamError{
			Service: "generator",
			Kind:    assessment.UpstreamBadPayload,
			Err:     fmt.Errorf("empty question set"),
		}
	}

	questions := make([]assessment.QuizQuestion, 0, len(resp.Data.Questions))
	for _, q := range resp.Data.Questions {
		normalized, err := normalizeQuestion(q)
		if err != nil {
			c.logger.Warn().Err(err).Str("question", q.QuestionText).Msg("dropping malformed question")
			continue
		}
		questions = append(questions, normalized)
	}
	if len(questions) == 0 {
		return assessment.Assessment{}, &assessment.UpstreamError{
			Service: "generator",
			Kind:    assessment.UpstreamBadPayload,
			Err:     fmt.Errorf("no usable questions after normalization"),
		}
	}

	return assessment.Assessment{Questions: questions}, nil
}

type feedbackResponse struct {
	Data struct {
		Feedback string `json:"feedback"`
	} `json:"data"`
}

// GenerateFeedback asks the LLM service to explain a learner's answer.
func (c *Client) GenerateFeedback(ctx context.Context, req assessment.FeedbackRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var resp feedbackResponse
	if err := c.post(ctx, c.feedbackURL, body, &resp); err != nil {
		return "", err
	}
	if resp.Data.Feedback == "" {
		return "", &assessment.UpstreamError{
			Service: "generator",
			Kind:    assessment.UpstreamBadPayload,
			Err:     fmt.Errorf("empty feedback"),
		}
	}
	return resp.Data.Feedback, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", url).Msg("generator request failed")
		return assessment.ClassifyUpstream("generator", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return &assessment.UpstreamError{
			Service: "generator",
			Kind:    assessment.UpstreamUnavailable,
			Err:     fmt.Errorf("status %d", resp.StatusCode),
		}
	}
	if resp.StatusCode >= 300 {
		c.logger.Error().Int("status", resp.StatusCode).Str("url", url).Msg("generator bad status")
		return &assessment.UpstreamError{
			Service: "generator",
			Kind:    assessment.UpstreamBadStatus,
			Err:     fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &assessment.UpstreamError{
			Service: "generator",
			Kind:    assessment.UpstreamBadPayload,
			Err:     err,
		}
	}
	return nil
}

func normalizeQuestion(q wireQuestion) (assessment.QuizQuestion, error) {
	if q.QuestionText == "" {
		return assessment.QuizQuestion{}, fmt.Errorf("missing question text")
	}
	if len(q.Options) < 2 {
		return assessment.QuizQuestion{}, fmt.Errorf("need at least two options, got %d", len(q.Options))
	}

	id := q.ID
	if id == "" {
		id = uuid.NewString()
	}

	found := false
	for _, opt := range q.Options {
		if opt.ID == q.CorrectID {
			found = true
			break
		}
	}
	if !found {
		return assessment.QuizQuestion{}, fmt.Errorf("correct option %q not in option list", q.CorrectID)
	}

	return assessment.QuizQuestion{
		ID:              id,
		QuestionText:    q.QuestionText,
		Options:         q.Options,
		CorrectOptionID: q.CorrectID,
		Explanation:     q.Explanation,
	}, nil
}
