package assessment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyUpstream(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind UpstreamKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, UpstreamTimeout},
		{"net timeout", timeoutErr{}, UpstreamTimeout},
		{"connection refused", errors.New("connect: connection refused"), UpstreamUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ClassifyUpstream("generator", tc.err)
			var upErr *UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, tc.kind, upErr.Kind)
			assert.Equal(t, "generator", upErr.Service)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestClassifyUpstreamNil(t *testing.T) {
	assert.NoError(t, ClassifyUpstream("content", nil))
}
