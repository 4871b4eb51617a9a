package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/catalyst-vod/config"
	"github.com/livepeer/catalyst-vod/handlers"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func ListenAndServeInternal(ctx context.Context, addr string, vodHandlers *handlers.VODHandlersCollection) error {
	router := NewVODAPIRouterInternal(vodHandlers)
	server := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	log.LogNoRequestID(
		"Starting VOD internal API!",
		"version", config.Version,
		"host", addr,
	)
	return serve(ctx, server)
}

// NewVODAPIRouterInternal serves what only the cluster should see: liveness,
// readiness and metrics.
func NewVODAPIRouterInternal(h *handlers.VODHandlersCollection) *httprouter.Router {
	router := httprouter.New()

	router.GET("/ok", h.Ok())
	router.GET("/healthcheck", h.Healthcheck())
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return router
}
