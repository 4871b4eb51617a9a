package pprof

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"
)

// ListenAndServe exposes the profiling handlers net/http/pprof registers on the
// default mux until ctx is cancelled.
func ListenAndServe(ctx context.Context, port int) error {
	server := &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", port), Handler: http.DefaultServeMux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("pprof listener stopped: %w", err)
}
