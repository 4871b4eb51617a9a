package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/livepeer/catalyst-vod/metrics"
)

// routeLabel keeps the metric cardinality bounded by using the route template
// rather than the concrete path.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

func MeasureRequest() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped, ok := w.(*responseWriter)
			if !ok {
				wrapped = wrapResponseWriter(w)
			}
			defer func() {
				metrics.Metrics.HTTPRequestDurationSec.
					WithLabelValues(routeLabel(r), r.Method, strconv.Itoa(wrapped.status)).
					Observe(time.Since(start).Seconds())
			}()
			next.ServeHTTP(wrapped, r)
		})
	}
}
