package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/learncheck/learncheck/internal/assessment"
)

// Config holds connection details for the user profile provider.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements assessment.PreferencesProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

var _ assessment.PreferencesProvider = (*Client)(nil)

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:     logger.With().Str("component", "profile_client").Logger(),
	}
}

type preferencesEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		Preferences assessment.UserPreferences `json:"preferences"`
	} `json:"data"`
}

// UserPreferences fetches display preferences for one user.
func (c *Client) UserPreferences(ctx context.Context, userID string) (assessment.UserPreferences, error) {
	url := fmt.Sprintf("%s/api/users/%s/preferences", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return assessment.UserPreferences{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("preferences fetch failed")
		return assessment.UserPreferences{}, assessment.ClassifyUpstream("profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return assessment.UserPreferences{}, &assessment.UpstreamError{
			Service: "profile",
			Kind:    assessment.UpstreamBadStatus,
			Err:     fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var env preferencesEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return assessment.UserPreferences{}, &assessment.UpstreamError{
			Service: "profile",
			Kind:    assessment.UpstreamBadPayload,
			Err:     err,
		}
	}

	prefs := env.Data.Preferences
	if prefs.Theme == "" {
		prefs = assessment.DefaultPreferences()
	}
	return prefs, nil
}
