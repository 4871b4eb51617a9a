package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/records"
)

type HealthcheckResponse struct {
	Status string `json:"status"`
}

// Healthcheck returns a 200 while the record store answers, so a load balancer
// stops routing to a node that lost its database.
func (d *VODHandlersCollection) Healthcheck() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		// any job id works, only the round trip matters
		_, err := d.Records.GetJobResult(ctx, "healthcheck")
		if err != nil && !errors.Is(err, records.ErrNotFound) {
			log.LogNoRequestID("healthcheck failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthcheckResponse{Status: "record store unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, HealthcheckResponse{Status: "healthy"})
	}
}
