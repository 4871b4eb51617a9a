package log

import (
	"io"
	"os"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

var loggerCache *cache.Cache
var defaultLoggerCacheExpiry = 6 * time.Hour

var (
	outMu sync.RWMutex
	out   io.Writer = os.Stderr
)

func init() {
	loggerCache = cache.New(defaultLoggerCacheExpiry, 10*time.Minute)
}

// SetOutput redirects all future loggers. Loggers already cached for a request
// ID are dropped so they pick up the new writer.
func SetOutput(w io.Writer) {
	outMu.Lock()
	out = w
	outMu.Unlock()
	loggerCache.Flush()
}

// Permanently add context to the logger. Any future logging for this Request ID will include this context
func AddContext(requestID string, keyvals ...interface{}) {
	loggerCache.Set(requestID, kitlog.With(getLogger(requestID), keyvals...), defaultLoggerCacheExpiry)
}

// Forget drops the cached logger once a request or job is finished.
func Forget(requestID string) {
	loggerCache.Delete(requestID)
}

func Log(requestID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(requestID), "msg", message).Log(keyvals...)
}

// Log in situations where we don't have access to the Request ID.
// Should be used sparingly and with as much context inserted into the message as possible
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(keyvals...)
}

func LogError(requestID string, message string, err error, keyvals ...interface{}) {
	msgLogger := kitlog.With(getLogger(requestID), "msg", message)
	errLogger := kitlog.With(msgLogger, "err", errString(err))
	_ = errLogger.Log(keyvals...)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func getLogger(requestID string) kitlog.Logger {
	logger, found := loggerCache.Get(requestID)
	if found {
		return logger.(kitlog.Logger)
	}

	newLogger := kitlog.With(newLogger(), "request_id", requestID)
	err := loggerCache.Add(requestID, newLogger, defaultLoggerCacheExpiry)
	if err != nil {
		// lost a race with another goroutine, use whichever made it into the cache
		if cached, ok := loggerCache.Get(requestID); ok {
			return cached.(kitlog.Logger)
		}
	}
	return newLogger
}

func newLogger() kitlog.Logger {
	outMu.RLock()
	w := out
	outMu.RUnlock()
	newLogger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	return kitlog.With(newLogger, "ts", kitlog.DefaultTimestampUTC)
}
