package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/requests"
)

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	written     int64
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LogRequest logs every request once it's done and turns handler panics into
// 500s. http.ErrAbortHandler is passed on so the server drops the connection.
func LogRequest() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := requests.GetRequestId(r)
			wrapped := wrapResponseWriter(w)
			wrapped.Header().Set("X-Request-Id", requestID)

			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						log.Log(requestID, "request aborted", "uri", r.URL.RequestURI(), "written", wrapped.written, "duration", time.Since(start))
						log.Forget(requestID)
						panic(err)
					}
					log.LogNoRequestID("panic in http handler", "request_id", requestID, "err", err, "trace", string(debug.Stack()))
					if !wrapped.wroteHeader {
						errors.WriteHTTPInternalServerError(wrapped, "Internal Server Error", nil)
					}
				}
				log.Log(requestID, "request done",
					"remote", r.RemoteAddr,
					"proto", r.Proto,
					"method", r.Method,
					"uri", r.URL.RequestURI(),
					"duration", time.Since(start),
					"status", wrapped.status,
					"written", wrapped.written,
				)
				log.Forget(requestID)
			}()

			next.ServeHTTP(wrapped, r.WithContext(log.WithLogValues(r.Context(), "request_id", requestID)))
		})
	}
}
