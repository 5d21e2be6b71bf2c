// Package poller implements the client side of the accept/poll protocol:
// submit an assessment request, and when the server answers 202 keep polling
// the same endpoint with the same parameters until the quiz is ready, the
// generation fails, or the poll budget runs out.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/learncheck/learncheck/internal/assessment"
)

const (
	defaultInterval = 3 * time.Second
	defaultMaxPolls = 20
)

// ErrPollTimeout is returned when the poll budget is exhausted before the
// server produced a terminal answer.
var ErrPollTimeout = errors.New("assessment not ready after polling budget")

// RequestError is a terminal server-side failure surfaced to the caller.
type RequestError struct {
	StatusCode int
	Code       string
	Message    string
	CanRetry   bool
	RetryAfter int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("assessment request failed (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

// Options tunes the polling loop.
type Options struct {
	Interval time.Duration
	MaxPolls uint64
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.MaxPolls == 0 {
		o.MaxPolls = defaultMaxPolls
	}
}

// Poller fetches assessments for one API base URL.
type Poller struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
	opts    Options
}

// New builds a Poller. httpClient may be nil.
func New(baseURL string, httpClient *http.Client, opts Options, logger zerolog.Logger) *Poller {
	opts.applyDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Poller{
		baseURL: baseURL,
		client:  httpClient,
		logger:  logger.With().Str("component", "poller").Logger(),
		opts:    opts,
	}
}

// FetchOptions map the first request's flags. NewSession and Fresh apply to
// the initial request only; polls repeat the plain parameters so the server
// keeps resolving the job already in flight.
type FetchOptions struct {
	Fresh      bool
	NewSession bool
}

// Fetch requests an assessment and, if generation is asynchronous, polls
// until a terminal outcome. It returns ErrPollTimeout when the budget runs
// out and the context's error when cancelled mid-poll.
func (p *Poller) Fetch(ctx context.Context, tutorialID, userID string, opts FetchOptions) (*assessment.AssessmentResponse, error) {
	resp, accepted, err := p.request(ctx, tutorialID, userID, opts)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		return resp, nil
	}
	p.logger.Debug().Str("job_id", accepted.JobID).Msg("generation accepted; polling")

	backoff := retry.WithMaxRetries(p.opts.MaxPolls, retry.NewConstant(p.opts.Interval))
	var out *assessment.AssessmentResponse
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, _, err := p.request(ctx, tutorialID, userID, FetchOptions{})
		if err != nil {
			return err
		}
		if r == nil {
			return retry.RetryableError(ErrPollTimeout)
		}
		out = r
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPollTimeout) && ctx.Err() == nil {
			return nil, ErrPollTimeout
		}
		return nil, err
	}
	return out, nil
}

// request performs one GET. Exactly one of the returns is set: a ready
// response, an accepted envelope, or an error.
func (p *Poller) request(ctx context.Context, tutorialID, userID string, opts FetchOptions) (*assessment.AssessmentResponse, *assessment.AcceptedResponse, error) {
	q := url.Values{}
	q.Set("tutorial_id", tutorialID)
	q.Set("user_id", userID)
	if opts.Fresh {
		q.Set("fresh", "true")
	}
	if opts.NewSession {
		q.Set("new_session", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/api/v1/assessment?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("assessment request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	switch res.StatusCode {
	case http.StatusOK:
		var out assessment.AssessmentResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, nil, fmt.Errorf("decode assessment: %w", err)
		}
		return &out, nil, nil

	case http.StatusAccepted:
		var accepted assessment.AcceptedResponse
		if err := json.Unmarshal(body, &accepted); err != nil {
			return nil, nil, fmt.Errorf("decode accepted envelope: %w", err)
		}
		return nil, &accepted, nil

	default:
		reqErr := &RequestError{StatusCode: res.StatusCode}
		var envelope struct {
			Error      string `json:"error"`
			Message    string `json:"message"`
			CanRetry   bool   `json:"canRetry"`
			RetryAfter int    `json:"retryAfter"`
		}
		if json.Unmarshal(body, &envelope) == nil {
			reqErr.Code = envelope.Error
			reqErr.Message = envelope.Message
			reqErr.CanRetry = envelope.CanRetry
			reqErr.RetryAfter = envelope.RetryAfter
		}
		return nil, nil, reqErr
	}
}
