package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/livepeer/catalyst-vod/config"
	caterrs "github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/handlers"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/middleware"
)

func ListenAndServe(ctx context.Context, cli config.Cli, vodHandlers *handlers.VODHandlersCollection, auth middleware.Authenticator) error {
	router := NewVODAPIRouter(cli, vodHandlers, auth)
	server := &http.Server{Addr: cli.HTTPAddress, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	log.LogNoRequestID(
		"Starting VOD API!",
		"version", config.Version,
		"host", cli.HTTPAddress,
	)
	return serve(ctx, server)
}

// serve runs the server until ctx is cancelled, then gives in-flight requests
// a few seconds to finish.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func NewVODAPIRouter(cli config.Cli, h *handlers.VODHandlersCollection, auth middleware.Authenticator) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LogRequest(), middleware.MeasureRequest(), middleware.AllowCORS())
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caterrs.WriteHTTPNotFound(w, "Not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caterrs.WriteHTTPError(w, http.StatusMethodNotAllowed, caterrs.CodeBadRequest, "Method not allowed", nil)
	})

	withAuth := middleware.IsAuthorized(auth)
	capacity := &middleware.CapacityMiddleware{MaxInFlight: cli.MaxInFlightUploads}

	// CORS preflight, answered by the middleware
	router.Methods(http.MethodOptions).PathPrefix("/").HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	api := router.PathPrefix("/api").Subrouter()
	api.Handle("/videos/upload", withAuth(capacity.HasCapacity(h.UploadVOD()))).Methods(http.MethodPost)
	api.Handle("/videos/status/{jobId}", withAuth(h.JobStatus())).Methods(http.MethodGet)
	api.Handle("/videos/watch/{url}", h.WatchVideo()).Methods(http.MethodGet, http.MethodHead)
	api.Handle("/videos/{id}", withAuth(h.GetVideo())).Methods(http.MethodGet)
	api.Handle("/videos/{id}/update", withAuth(h.UpdateVideo())).Methods(http.MethodPut)
	api.Handle("/videos/{id}", withAuth(h.DeleteVideo())).Methods(http.MethodDelete)

	router.Handle("/static/"+config.VideosSubdir+"/{baseName}/"+config.ThumbnailFilename, h.Thumbnail()).
		Methods(http.MethodGet, http.MethodHead)

	return router
}
