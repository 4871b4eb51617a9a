package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/livepeer/catalyst-vod/handlers"
	"github.com/livepeer/catalyst-vod/records"
	"github.com/stretchr/testify/require"
)

func TestInternalRoutes(t *testing.T) {
	router := NewVODAPIRouterInternal(&handlers.VODHandlersCollection{Records: records.NewMemory()})

	for _, path := range []string{"/ok", "/healthcheck", "/metrics"} {
		handle, _, _ := router.Lookup("GET", path)
		require.NotNil(t, handle, path)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "go_goroutines")
}
