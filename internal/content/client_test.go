package content

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

func TestStripHTML(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{"plain text", "closures capture variables", "closures capture variables"},
		{"tags removed", "<h1>Closures</h1><p>capture variables</p>", "Closures capture variables"},
		{"entities decoded", "a &amp; b &lt;fn&gt; &quot;x&quot; &#39;y&#39;", `a & b <fn> "x" 'y'`},
		{"nbsp collapsed", "one&nbsp;&nbsp;two", "one two"},
		{"whitespace collapsed", "one\n\n  two\t three", "one two three"},
		{"attributes stripped", `<a href="https://example.com" target="_blank">link</a>`, "link"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.out, StripHTML(tc.in))
		})
	}
}

func TestTutorialContentFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tutorials/closures-101", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"content":"<p>Scopes &amp; closures</p>"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	tut, err := client.TutorialContent(context.Background(), "closures-101")
	require.NoError(t, err)
	assert.Equal(t, "closures-101", tut.TutorialID)
	assert.Equal(t, "Scopes & closures", tut.Content)
	assert.Equal(t, "<p>Scopes &amp; closures</p>", tut.RawContent)
}

func TestTutorialContentBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := client.TutorialContent(context.Background(), "missing")

	var upErr *assessment.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, assessment.UpstreamBadStatus, upErr.Kind)
	assert.Equal(t, "content", upErr.Service)
}

func TestTutorialContentRejectsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","data":{}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := client.TutorialContent(context.Background(), "tut-1")

	var upErr *assessment.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, assessment.UpstreamBadPayload, upErr.Kind)
}

func TestTutorialContentUnreachable(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, zerolog.Nop())
	_, err := client.TutorialContent(context.Background(), "tut-1")

	var upErr *assessment.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, assessment.UpstreamUnavailable, upErr.Kind)
}
