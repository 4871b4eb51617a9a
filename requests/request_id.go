package requests

import (
	"net/http"

	"github.com/livepeer/catalyst-vod/config"
)

const requestIDParam = "X-Request-Id"

// GetRequestId returns the caller supplied request id, minting one if there
// isn't any, so every log line of a request can be grouped.
func GetRequestId(req *http.Request) string {
	requestID := req.Header.Get(requestIDParam)
	if requestID != "" {
		return requestID
	}
	requestID = config.RandomTrailer(8)
	req.Header.Set(requestIDParam, requestID)
	return requestID
}
