/*
Package log wraps go-kit logfmt logging. Loggers are keyed by request ID (for
workers, the job ID) so that context added once is carried on every later line.
*/
package log

import (
	"context"
)

type clogContextKeyType struct{}

var clogContextKey = clogContextKeyType{}

// logging metadata is immutable after creation, so there's no locking.
type metadata map[string]any

// Flat lists the metadata as keyvals, leaving out the given keys.
func (m metadata) Flat(skip ...string) []any {
	out := []any{}
outer:
	for k, v := range m {
		for _, s := range skip {
			if k == s {
				continue outer
			}
		}
		out = append(out, k, v)
	}
	return out
}

// Return a new context, adding in the provided values to the logging metadata
func WithLogValues(ctx context.Context, args ...string) context.Context {
	oldMetadata, _ := ctx.Value(clogContextKey).(metadata)
	newMetadata := metadata{}
	for k, v := range oldMetadata {
		newMetadata[k] = v
	}
	for i := 1; i < len(args); i += 2 {
		newMetadata[args[i-1]] = args[i]
	}
	return context.WithValue(ctx, clogContextKey, newMetadata)
}

// RequestID returns the request_id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	meta, _ := ctx.Value(clogContextKey).(metadata)
	id, _ := meta["request_id"].(string)
	return id
}

func LogCtx(ctx context.Context, message string, args ...any) {
	meta, _ := ctx.Value(clogContextKey).(metadata)
	// the request logger already carries request_id
	if requestID := RequestID(ctx); requestID != "" {
		Log(requestID, message, append(meta.Flat("request_id"), args...)...)
	} else {
		LogNoRequestID(message, append(meta.Flat(), args...)...)
	}
}

func LogCtxError(ctx context.Context, message string, err error, args ...any) {
	LogCtx(ctx, message, append([]any{"err", errString(err)}, args...)...)
}
