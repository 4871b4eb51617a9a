package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddContextIsCarried(t *testing.T) {
	b := captureLogs(t)
	AddContext("job-1", "base_name", "abc")
	Log("job-1", "first")
	Log("job-1", "second", "rung", "720p")
	Log("job-2", "other job")

	lines := toMap(b)
	require.Len(t, lines, 3)
	require.Equal(t, "abc", lines[0]["base_name"])
	require.Equal(t, "job-1", lines[0]["request_id"])
	require.Equal(t, "abc", lines[1]["base_name"])
	require.Equal(t, "720p", lines[1]["rung"])
	require.NotContains(t, lines[2], "base_name")
	require.Equal(t, "job-2", lines[2]["request_id"])
}

func TestForgetDropsContext(t *testing.T) {
	b := captureLogs(t)
	AddContext("job-3", "stage", "encoding")
	Forget("job-3")
	Log("job-3", "after forget")

	lines := toMap(b)
	require.Len(t, lines, 1)
	require.NotContains(t, lines[0], "stage")
}

func TestLogError(t *testing.T) {
	b := captureLogs(t)
	LogError("job-4", "encode failed", errors.New("exit status 1"), "rung", "144p")
	LogError("job-4", "nil error is fine", nil)
	LogNoRequestID("no id")

	lines := toMap(b)
	require.Len(t, lines, 3)
	require.Equal(t, "exit status 1", lines[0]["err"])
	require.Equal(t, "144p", lines[0]["rung"])
	require.Equal(t, "", lines[1]["err"])
	require.NotContains(t, lines[2], "request_id")
}
