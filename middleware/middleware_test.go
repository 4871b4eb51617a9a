package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/livepeer/catalyst-vod/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestLogRequestRecoversPanics(t *testing.T) {
	h := LogRequest()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "req-1", rr.Header().Get("X-Request-Id"))
}

func TestLogRequestRepanicsAbort(t *testing.T) {
	h := LogRequest()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("partial"))
		panic(http.ErrAbortHandler)
	}))
	rr := httptest.NewRecorder()
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	})
	require.Equal(t, http.StatusPartialContent, rr.Code)
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	w := wrapResponseWriter(rr)
	w.WriteHeader(http.StatusAccepted)
	w.WriteHeader(http.StatusTeapot)
	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, http.StatusAccepted, w.status)
	require.Equal(t, int64(3), w.written)
}

func TestAllowCORS(t *testing.T) {
	called := false
	h := AllowCORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/api/videos/watch/x", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.False(t, called)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/videos/watch/x", nil))
	require.True(t, called)
	require.Contains(t, rr.Header().Get("Access-Control-Expose-Headers"), "Content-Range")
}

func TestHasCapacity(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 3)
	c := &CapacityMiddleware{MaxInFlight: 2}
	h := c.HasCapacity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		w.WriteHeader(http.StatusAccepted)
	}))

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/videos/upload", nil))
			codes[i] = rr.Code
		}(i)
	}
	<-entered
	<-entered

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/videos/upload", nil))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	close(release)
	wg.Wait()
	require.Equal(t, []int{http.StatusAccepted, http.StatusAccepted}, codes)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/videos/upload", nil))
	require.Equal(t, http.StatusAccepted, rr.Code, "slots are released once requests finish")
}

func TestMeasureRequestUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MeasureRequest())
	router.HandleFunc("/api/videos/status/{jobId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/videos/status/"+id, nil))
	}

	count := testutil.CollectAndCount(metrics.Metrics.HTTPRequestDurationSec, "vod_http_request_duration_seconds")
	require.GreaterOrEqual(t, count, 1)

	dm := &dto.Metric{}
	obs, err := metrics.Metrics.HTTPRequestDurationSec.GetMetricWithLabelValues("/api/videos/status/{jobId}", "GET", "418")
	require.NoError(t, err)
	require.NoError(t, obs.(prometheus.Metric).Write(dm))
	require.Equal(t, uint64(3), dm.GetHistogram().GetSampleCount(), "all three paths share one series")
}
