package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/livepeer/catalyst-vod/config"
	"github.com/livepeer/catalyst-vod/handlers"
	"github.com/livepeer/catalyst-vod/middleware"
	"github.com/livepeer/catalyst-vod/playback"
	"github.com/livepeer/catalyst-vod/queue"
	"github.com/livepeer/catalyst-vod/records"
	"github.com/livepeer/catalyst-vod/storage"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

type testAPI struct {
	server  *httptest.Server
	records *records.Memory
	storage *storage.Store
	queue   *queue.Memory
}

func newTestAPI(t *testing.T) *testAPI {
	root := t.TempDir()
	store := storage.New(filepath.Join(root, "videos"), filepath.Join(root, "incoming"))
	require.NoError(t, store.Init())
	recs := records.NewMemory()
	q := queue.NewMemory(queue.Options{Concurrency: 1})
	t.Cleanup(func() { _ = q.Close() })

	h := &handlers.VODHandlersCollection{
		Queue:    q,
		Records:  recs,
		Storage:  store,
		Playback: &playback.Server{Records: recs, Storage: store},
	}
	router := NewVODAPIRouter(config.Cli{}, h, middleware.JWTAuthenticator{Secret: secret})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testAPI{server: server, records: recs, storage: store, queue: q}
}

func token(t *testing.T, userID string) string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &middleware.AccessClaims{UserID: userID, Role: "USER"}).SignedString(secret)
	require.NoError(t, err)
	return s
}

func (a *testAPI) do(t *testing.T, method, path, userID string, body *bytes.Buffer, contentType string) *http.Response {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, a.server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: token(t, userID)})
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestInitServer(t *testing.T) {
	router := NewVODAPIRouter(config.Cli{}, &handlers.VODHandlersCollection{}, middleware.JWTAuthenticator{Secret: secret})

	for _, tt := range []struct{ method, path string }{
		{"POST", "/api/videos/upload"},
		{"GET", "/api/videos/status/job"},
		{"GET", "/api/videos/watch/base"},
		{"HEAD", "/api/videos/watch/base"},
		{"GET", "/api/videos/id"},
		{"PUT", "/api/videos/id/update"},
		{"DELETE", "/api/videos/id"},
		{"GET", "/static/videos/base/thumbnail.jpg"},
	} {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		var match mux.RouteMatch
		require.True(t, router.Match(req, &match), "%s %s", tt.method, tt.path)
		require.NoError(t, match.MatchErr, "%s %s", tt.method, tt.path)
	}
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)
	for _, tt := range []struct{ method, path string }{
		{"POST", "/api/videos/upload"},
		{"GET", "/api/videos/status/job"},
		{"GET", "/api/videos/some-id"},
		{"PUT", "/api/videos/some-id/update"},
		{"DELETE", "/api/videos/some-id"},
	} {
		resp := a.do(t, tt.method, tt.path, "", nil, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tt.method, tt.path)
	}
}

func TestUploadThenPoll(t *testing.T) {
	a := newTestAPI(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "hello"))
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="v.mp4"`)
	h.Set("Content-Type", "video/mp4")
	fw, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = fw.Write([]byte("video"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := a.do(t, "POST", "/api/videos/upload", "user-1", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	var uploaded struct {
		Success bool
		Data    handlers.UploadVODResponse
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	require.True(t, uploaded.Success)
	require.NotEmpty(t, uploaded.Data.JobID)

	resp = a.do(t, "GET", "/api/videos/status/"+uploaded.Data.JobID, "user-1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status handlers.JobStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, handlers.JobStatusProcessing, status.Status)
}

func TestWatchIsPublic(t *testing.T) {
	a := newTestAPI(t)
	require.NoError(t, a.records.CreateAsset(context.Background(), records.Asset{
		ID: "vid", BaseName: "base", AuthorID: "u", Visibility: records.VisibilityPublic,
	}))
	dir, err := a.storage.CreateJobDir("base")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "360p.mp4"), []byte("0123456789"), 0644))

	req, err := http.NewRequest("GET", a.server.URL+"/api/videos/watch/base?quality=360p", nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=3-6")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	require.Equal(t, "bytes 3-6/10", resp.Header.Get("Content-Range"))
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	var got bytes.Buffer
	_, err = got.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "3456", got.String())
}

func TestUnknownRouteIsJSON(t *testing.T) {
	a := newTestAPI(t)
	resp := a.do(t, "GET", "/api/nothing/here", "", nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
