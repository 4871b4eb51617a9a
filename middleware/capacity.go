package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/metrics"
	"github.com/livepeer/catalyst-vod/requests"
)

// CapacityMiddleware caps the number of uploads being received at once. A
// limit of zero or less disables the check.
type CapacityMiddleware struct {
	MaxInFlight int64

	uploadsInFlight atomic.Int64
}

func (c *CapacityMiddleware) HasCapacity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight := c.uploadsInFlight.Add(1)
		metrics.Metrics.UploadsInFlight.Set(float64(inFlight))
		defer func() {
			metrics.Metrics.UploadsInFlight.Set(float64(c.uploadsInFlight.Add(-1)))
		}()

		if c.MaxInFlight > 0 && inFlight > c.MaxInFlight {
			log.Log(requests.GetRequestId(r), "rejecting upload, too many in flight", "in_flight", inFlight-1, "max", c.MaxInFlight)
			errors.WriteHTTPError(w, http.StatusTooManyRequests, errors.CodeTooManyRequests, "Too many uploads in progress, try again later", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
