package handlers

import (
	stderrors "errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/requests"
	"github.com/livepeer/catalyst-vod/storage"
	"github.com/livepeer/catalyst-vod/video"
)

// Thumbnail serves the thumbnail of a base name, the only file of the
// rendition store exposed without going through the watch endpoint.
func (d *VODHandlersCollection) Thumbnail() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		baseName := mux.Vars(req)["baseName"]
		path, err := d.Storage.ThumbnailPath(baseName)
		if err != nil {
			errors.WriteHTTPNotFound(w, "Thumbnail not found", nil)
			return
		}
		f, _, err := storage.OpenFile(path)
		if stderrors.Is(err, fs.ErrNotExist) {
			errors.WriteHTTPNotFound(w, "Thumbnail not found", nil)
			return
		}
		if err != nil {
			log.LogError(requests.GetRequestId(req), "failed to open thumbnail", err, "path", path)
			errors.WriteHTTPInternalServerError(w, "Cannot open thumbnail", nil)
			return
		}
		defer f.Close()

		var modTime time.Time
		if info, err := f.Stat(); err == nil {
			modTime = info.ModTime()
		}
		w.Header().Set("Content-Type", video.ThumbnailContentType)
		http.ServeContent(w, req, path, modTime, f)
	})
}
