package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/learncheck/learncheck/internal/assessment"
)

// Config holds connection details for the tutorial content provider.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements assessment.ContentProvider against the tutorial API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

var _ assessment.ContentProvider = (*Client)(nil)

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:     logger.With().Str("component", "content_client").Logger(),
	}
}

type tutorialEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		Content string `json:"content"`
	} `json:"data"`
}

// TutorialContent fetches one tutorial and returns both the raw HTML and a
// plain-text extraction suitable for question generation.
func (c *Client) TutorialContent(ctx context.Context, tutorialID string) (assessment.TutorialContent, error) {
	url := fmt.Sprintf("%s/api/tutorials/%s", c.baseURL, tutorialID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return assessment.TutorialContent{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("tutorial_id", tutorialID).Msg("tutorial fetch failed")
		return assessment.TutorialContent{}, assessment.ClassifyUpstream("content", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Error().Int("status", resp.StatusCode).Str("tutorial_id", tutorialID).Msg("tutorial fetch bad status")
		return assessment.TutorialContent{}, &assessment.UpstreamError{
			Service: "content",
			Kind:    assessment.UpstreamBadStatus,
			Err:     fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var env tutorialEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return assessment.TutorialContent{}, &assessment.UpstreamError{
			Service: "content",
			Kind:    assessment.UpstreamBadPayload,
			Err:     err,
		}
	}
	if env.Status != "success" {
		return assessment.TutorialContent{}, &assessment.UpstreamError{
			Service: "content",
			Kind:    assessment.UpstreamBadPayload,
			Err:     fmt.Errorf("upstream status %q", env.Status),
		}
	}

	return assessment.TutorialContent{
		TutorialID: tutorialID,
		Content:    StripHTML(env.Data.Content),
		RawContent: env.Data.Content,
	}, nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	entityReplacer    = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// StripHTML reduces tutorial HTML to the plain text fed to the generator:
// tags removed, common entities decoded, whitespace collapsed.
func StripHTML(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	text = entityReplacer.Replace(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
