package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/playback"
	"github.com/livepeer/catalyst-vod/queue"
	"github.com/livepeer/catalyst-vod/records"
	"github.com/livepeer/catalyst-vod/requests"
	"github.com/livepeer/catalyst-vod/storage"
)

type VODHandlersCollection struct {
	Queue    queue.Queue
	Records  records.Store
	Storage  *storage.Store
	Playback *playback.Server
	// Zero means config.DefaultMaxUploadBytes
	MaxUploadBytes int64
}

// Response is the envelope of every JSON success body apart from job status.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.LogNoRequestID("error writing HTTP response", "status", status, "err", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

// identity is only missing if a route was registered without auth.
func identity(w http.ResponseWriter, req *http.Request) (requests.Identity, bool) {
	id, ok := requests.IdentityFrom(req.Context())
	if !ok {
		errors.WriteHTTPUnauthorized(w, "Authentication required", nil)
	}
	return id, ok
}

func HasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}
	return false
}
