package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/records"
	"github.com/livepeer/catalyst-vod/requests"
)

const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
)

type JobStatusResponse struct {
	Status  string `json:"status"`
	VideoID string `json:"video_id,omitempty"`
}

// JobStatus reports "processing" until the job has a result. A job that was
// abandoned by the worker keeps reporting "processing".
func (d *VODHandlersCollection) JobStatus() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		jobID := mux.Vars(req)["jobId"]
		result, err := d.Records.GetJobResult(req.Context(), jobID)
		if stderrors.Is(err, records.ErrNotFound) {
			writeJSON(w, http.StatusOK, JobStatusResponse{Status: JobStatusProcessing})
			return
		}
		if err != nil {
			log.LogError(requests.GetRequestId(req), "failed to read job result", err, "job_id", jobID)
			errors.WriteHTTPInternalServerError(w, "Cannot read job status", nil)
			return
		}
		writeJSON(w, http.StatusOK, JobStatusResponse{Status: JobStatusCompleted, VideoID: result.VideoID})
	})
}
