package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/pipeline"
	"github.com/livepeer/catalyst-vod/records"
	"github.com/livepeer/catalyst-vod/requests"
	"github.com/xeipuuv/gojsonschema"
)

const maxUpdateBodyBytes = 64 * 1024

type VideoResponse struct {
	records.Asset
	// Renditions present in the rendition store, in ladder order
	Qualities []string `json:"qualities"`
}

type UpdateVideoRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Visibility  *records.Visibility `json:"visibility"`
}

// loadAsset writes the error response itself when it returns false.
func (d *VODHandlersCollection) loadAsset(w http.ResponseWriter, req *http.Request) (records.Asset, bool) {
	id := mux.Vars(req)["id"]
	asset, err := d.Records.GetAsset(req.Context(), id)
	if stderrors.Is(err, records.ErrNotFound) {
		errors.WriteHTTPNotFound(w, "Video not found", nil)
		return asset, false
	}
	if err != nil {
		log.LogError(requests.GetRequestId(req), "failed to read asset", err, "asset_id", id)
		errors.WriteHTTPInternalServerError(w, "Cannot read video", nil)
		return asset, false
	}
	return asset, true
}

func (d *VODHandlersCollection) loadOwnAsset(w http.ResponseWriter, req *http.Request) (records.Asset, bool) {
	caller, ok := identity(w, req)
	if !ok {
		return records.Asset{}, false
	}
	asset, ok := d.loadAsset(w, req)
	if !ok {
		return asset, false
	}
	if asset.AuthorID != caller.UserID {
		errors.WriteHTTPForbidden(w, "Only the author can change this video", nil)
		return asset, false
	}
	return asset, true
}

// GetVideo returns a video's metadata. Non-public videos are only visible to
// their author.
func (d *VODHandlersCollection) GetVideo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		caller, ok := identity(w, req)
		if !ok {
			return
		}
		asset, ok := d.loadAsset(w, req)
		if !ok {
			return
		}
		if asset.Visibility == records.VisibilityPrivate && asset.AuthorID != caller.UserID {
			errors.WriteHTTPForbidden(w, "Video is private", nil)
			return
		}

		qualities, err := d.Storage.Qualities(asset.BaseName)
		if err != nil {
			log.LogError(requests.GetRequestId(req), "failed to list renditions", err, "base_name", asset.BaseName)
		}
		if qualities == nil {
			qualities = []string{}
		}
		writeSuccess(w, http.StatusOK, "", VideoResponse{Asset: asset, Qualities: qualities})
	})
}

func (d *VODHandlersCollection) UpdateVideo() http.Handler {
	schema := inputSchemasCompiled["UpdateVideo"]

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var updateRequest UpdateVideoRequest

		if !HasContentType(req, "application/json") {
			errors.WriteHTTPUnsupportedMediaType(w, "Requires application/json content type", nil)
			return
		}
		payload, err := io.ReadAll(io.LimitReader(req.Body, maxUpdateBodyBytes))
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot read payload", err)
			return
		}
		result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
		if err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		} else if !result.Valid() {
			errors.WriteHTTPBadBodySchema("UpdateVideo", w, result.Errors())
			return
		} else if err := json.Unmarshal(payload, &updateRequest); err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		}

		asset, ok := d.loadOwnAsset(w, req)
		if !ok {
			return
		}
		updated, err := d.Records.UpdateAsset(req.Context(), asset.ID, records.AssetUpdate{
			Title:       updateRequest.Title,
			Description: updateRequest.Description,
			Visibility:  updateRequest.Visibility,
		})
		if stderrors.Is(err, records.ErrNotFound) {
			errors.WriteHTTPNotFound(w, "Video not found", nil)
			return
		}
		if err != nil {
			log.LogError(requests.GetRequestId(req), "failed to update asset", err, "asset_id", asset.ID)
			errors.WriteHTTPInternalServerError(w, "Cannot update video", nil)
			return
		}
		writeSuccess(w, http.StatusOK, "Video updated", updated)
	})
}

// DeleteVideo drops the record first. Removing the files afterwards is best
// effort, a leftover directory is unreachable once the record is gone.
func (d *VODHandlersCollection) DeleteVideo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := requests.GetRequestId(req)
		asset, ok := d.loadOwnAsset(w, req)
		if !ok {
			return
		}
		deleted, err := d.Records.DeleteAsset(req.Context(), asset.ID)
		if stderrors.Is(err, records.ErrNotFound) {
			errors.WriteHTTPNotFound(w, "Video not found", nil)
			return
		}
		if err != nil {
			log.LogError(requestID, "failed to delete asset", err, "asset_id", asset.ID)
			errors.WriteHTTPInternalServerError(w, "Cannot delete video", nil)
			return
		}
		pipeline.BestEffort(func() error {
			return d.Storage.RemoveJob(deleted.BaseName)
		}).Run(req.Context(), "delete rendition directory")

		log.Log(requestID, "video deleted", "asset_id", deleted.ID, "base_name", deleted.BaseName)
		writeSuccess(w, http.StatusOK, "Video deleted", deleted)
	})
}
