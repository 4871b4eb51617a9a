package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/livepeer/catalyst-vod/config"
	"github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/metrics"
	"github.com/livepeer/catalyst-vod/playback"
	"github.com/livepeer/catalyst-vod/requests"
)

func rejectWatch(w http.ResponseWriter, status int, code, msg string, err error) {
	metrics.Metrics.StreamRejectedCount.WithLabelValues(code).Inc()
	errors.WriteHTTPError(w, status, code, msg, err)
}

// writeResolveError maps a failed playback.Resolve onto the response. Storage
// missing is checked first since it is also an ErrAssetNotFound.
func writeResolveError(w http.ResponseWriter, requestID string, err error) {
	switch {
	case stderrors.Is(err, playback.ErrAssetStorageMissing):
		log.LogError(requestID, "asset has a record but no renditions", err)
		rejectWatch(w, http.StatusNotFound, errors.CodeAssetStorageMissing, "Video files not found", nil)
	case stderrors.Is(err, playback.ErrAssetNotFound):
		rejectWatch(w, http.StatusNotFound, errors.CodeAssetNotFound, "Video not found", nil)
	case stderrors.Is(err, errors.ErrForbidden):
		rejectWatch(w, http.StatusForbidden, errors.CodeForbidden, "Video is not public", nil)
	case stderrors.Is(err, playback.ErrQualityNotFound):
		rejectWatch(w, http.StatusNotFound, errors.CodeQualityNotFound, "Requested quality not available", nil)
	default:
		log.LogError(requestID, "failed to resolve watch request", err)
		rejectWatch(w, http.StatusInternalServerError, errors.CodeInternal, "Cannot open video", nil)
	}
}

// WatchVideo serves one byte range of a rendition with a 206. Every check that
// can fail happens before the status line is written. Once streaming has
// started a failure can only abort the connection.
func (d *VODHandlersCollection) WatchVideo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := requests.GetRequestId(req)
		key := mux.Vars(req)["url"]
		quality := req.URL.Query().Get("quality")
		log.AddContext(requestID, "key", key, "quality", quality)

		target, err := d.Playback.Resolve(req.Context(), key, quality)
		if err != nil {
			writeResolveError(w, requestID, err)
			return
		}
		defer target.Close()

		rng, err := playback.ParseRange(req.Header.Get("Range"), target.Size)
		switch {
		case stderrors.Is(err, playback.ErrRangeNotSatisfiable):
			w.Header().Set("Content-Range", playback.UnsatisfiedContentRange(target.Size))
			rejectWatch(w, http.StatusRequestedRangeNotSatisfiable, errors.CodeRangeNotSatisfiable, "Range not satisfiable", err)
			return
		case err != nil:
			rejectWatch(w, http.StatusBadRequest, errors.CodeInvalidRange, "Invalid Range header", err)
			return
		}

		h := w.Header()
		h.Set("Content-Range", rng.ContentRange(target.Size))
		h.Set("Accept-Ranges", "bytes")
		h.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
		h.Set("Content-Type", playback.ContentType)
		w.WriteHeader(http.StatusPartialContent)
		if req.Method == http.MethodHead {
			return
		}

		n, err := playback.Stream(req.Context(), w, target.File, rng, config.StreamBufferBytes)
		metrics.Metrics.StreamBytes.WithLabelValues(quality).Add(float64(n))
		if err != nil {
			log.LogError(requestID, "stream aborted", err, "written", n, "range", rng.ContentRange(target.Size))
			panic(http.ErrAbortHandler)
		}
	})
}
