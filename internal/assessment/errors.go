package assessment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// RateLimitError is returned when a user exceeds the per-user generation
// budget. It is retryable after the window elapses.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many requests, retry in %s", e.RetryAfter)
}

// GenerationError is a terminal generation failure surfaced to the client.
// Raw transport detail never rides along; the upstream cause is logged at
// the point of failure and replaced with a stable message.
type GenerationError struct {
	Message  string
	CanRetry bool
}

func (e *GenerationError) Error() string {
	return e.Message
}

// UpstreamKind classifies collaborator failures.
type UpstreamKind string

const (
	UpstreamTimeout     UpstreamKind = "timeout"
	UpstreamUnavailable UpstreamKind = "unavailable"
	UpstreamBadStatus   UpstreamKind = "bad_status"
	UpstreamBadPayload  UpstreamKind = "bad_payload"
)

// UpstreamError wraps a collaborator transport failure with its
// classification so the worker's retry policy can treat timeouts and
// connection refusals as retryable.
type UpstreamError struct {
	Service string
	Kind    UpstreamKind
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream %s: %v", e.Service, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ClassifyUpstream converts a raw transport error into an UpstreamError.
// The original error is preserved for logging via Unwrap.
func ClassifyUpstream(service string, err error) error {
	if err == nil {
		return nil
	}
	kind := UpstreamUnavailable
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = UpstreamTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = UpstreamTimeout
	}
	return &UpstreamError{Service: service, Kind: kind, Err: err}
}
