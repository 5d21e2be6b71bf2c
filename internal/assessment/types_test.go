package assessment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobIDFormats(t *testing.T) {
	assert.Equal(t, "user-42-closures-101", JobID("user-42", "closures-101"))
	assert.Equal(t, "pregenerate-closures-101", PregenerateJobID("closures-101"))
}

func TestJobResultCompletedRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	in := JobCompleted{
		Data: AssessmentResponse{
			Assessment:      poolOf(3),
			UserPreferences: DefaultPreferences(),
			FromCache:       false,
		},
		CompletedAt: at,
	}

	data, err := EncodeJobResult(in)
	require.NoError(t, err)

	// Wire shape is the envelope the widget already understands.
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.JSONEq(t, `"completed"`, string(envelope["status"]))
	assert.Contains(t, envelope, "data")
	assert.JSONEq(t, `"2026-08-01T12:30:00Z"`, string(envelope["completedAt"]))
	assert.NotContains(t, envelope, "error")

	out, err := DecodeJobResult(data)
	require.NoError(t, err)
	completed, ok := out.(JobCompleted)
	require.True(t, ok)
	assert.Equal(t, in.Data, completed.Data)
	assert.Equal(t, at, completed.CompletedAt)
}

func TestJobResultFailedRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	in := JobFailed{Message: "generator timeout", FailedAt: at}

	data, err := EncodeJobResult(in)
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.JSONEq(t, `"failed"`, string(envelope["status"]))
	assert.JSONEq(t, `"generator timeout"`, string(envelope["error"]))
	assert.NotContains(t, envelope, "data")

	out, err := DecodeJobResult(data)
	require.NoError(t, err)
	failed, ok := out.(JobFailed)
	require.True(t, ok)
	assert.Equal(t, "generator timeout", failed.Message)
	assert.Equal(t, at, failed.FailedAt)
}

func TestDecodeJobResultRejectsUnknownStatus(t *testing.T) {
	_, err := DecodeJobResult([]byte(`{"status":"pending"}`))
	assert.Error(t, err)

	_, err = DecodeJobResult([]byte(`{"status":"completed"}`))
	assert.Error(t, err, "completed without data must not decode")

	_, err = DecodeJobResult([]byte(`not json`))
	assert.Error(t, err)
}
