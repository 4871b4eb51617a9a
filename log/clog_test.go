package log

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/go-logfmt/logfmt"
	"github.com/stretchr/testify/require"
)

func toMap(r io.Reader) []map[string]string {
	d := logfmt.NewDecoder(r)
	out := []map[string]string{}
	for d.ScanRecord() {
		m := map[string]string{}
		for d.ScanKeyval() {
			m[string(d.Key())] = string(d.Value())
		}
		out = append(out, m)
	}
	return out
}

func captureLogs(t *testing.T) *bytes.Buffer {
	var b bytes.Buffer
	SetOutput(&b)
	t.Cleanup(func() { SetOutput(io.Discard) })
	return &b
}

func TestContextLog(t *testing.T) {
	b := captureLogs(t)
	ctx := WithLogValues(context.TODO(), "foo", "bar")
	LogCtx(ctx, "test message")
	result := toMap(b)
	require.Len(t, result, 1)
	line := result[0]
	require.Len(t, line, 3)
	require.NotEmpty(t, line["ts"])
	require.Equal(t, "test message", line["msg"])
	require.Equal(t, "bar", line["foo"])
	b.Reset()

	ctx2 := WithLogValues(ctx, "request_id", "my_request", "other_field", "other_value")
	require.Equal(t, "my_request", RequestID(ctx2))
	require.Equal(t, "", RequestID(ctx))
	LogCtx(ctx2, "child context message")
	result = toMap(b)
	require.Len(t, result, 1)
	line = result[0]
	require.Len(t, line, 5)
	require.Equal(t, "child context message", line["msg"])
	require.Equal(t, "bar", line["foo"])
	require.Equal(t, "my_request", line["request_id"])
	require.Equal(t, "other_value", line["other_field"])
}

func TestContextLogError(t *testing.T) {
	b := captureLogs(t)
	ctx := WithLogValues(context.TODO(), "request_id", "req-err")
	LogCtxError(ctx, "it broke", errors.New("boom"), "stage", "probing")
	result := toMap(b)
	require.Len(t, result, 1)
	require.Equal(t, "boom", result[0]["err"])
	require.Equal(t, "probing", result[0]["stage"])
	require.Equal(t, "req-err", result[0]["request_id"])
}

func TestContextLogCarriesRequestContext(t *testing.T) {
	b := captureLogs(t)
	AddContext("job-7", "job_id", "job-7", "user_id", "user-1")
	defer Forget("job-7")

	ctx := WithLogValues(context.Background(), "request_id", "job-7")
	LogCtx(ctx, "encode task done", "kind", "resize")

	raw := b.String()
	require.Equal(t, 1, strings.Count(raw, "request_id="))
	result := toMap(strings.NewReader(raw))
	require.Len(t, result, 1)
	require.Equal(t, "job-7", result[0]["request_id"])
	require.Equal(t, "job-7", result[0]["job_id"])
	require.Equal(t, "user-1", result[0]["user_id"])
	require.Equal(t, "resize", result[0]["kind"])
}
