package handlers

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/livepeer/catalyst-vod/config"
	"github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/metrics"
	"github.com/livepeer/catalyst-vod/queue"
	"github.com/livepeer/catalyst-vod/requests"
	"github.com/livepeer/catalyst-vod/storage"
)

const (
	uploadFileField = "file"
	maxTitleLen     = 256
	maxDescLen      = 5000
)

type UploadVODResponse struct {
	JobID string `json:"job_id"`
}

// uploadForm is what's left of a multipart upload once the file part is on disk.
type uploadForm struct {
	title       string
	description string
	sourcePath  string
	size        int64
}

type uploadError struct {
	status int
	code   string
	msg    string
	err    error
}

func (e *uploadError) Error() string {
	return e.msg
}

func invalidUpload(status int, code, msg string, err error) *uploadError {
	return &uploadError{status: status, code: code, msg: msg, err: err}
}

func (d *VODHandlersCollection) maxUploadBytes() int64 {
	if d.MaxUploadBytes > 0 {
		return d.MaxUploadBytes
	}
	return config.DefaultMaxUploadBytes
}

// UploadVOD receives a video as multipart/form-data, stores it in the incoming
// directory and queues a transcode job for it. The only thing returned is the
// job id to poll.
func (d *VODHandlersCollection) UploadVOD() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := requests.GetRequestId(req)
		status := http.StatusAccepted
		defer func() {
			metrics.Metrics.UploadRequestCount.WithLabelValues(strconv.Itoa(status)).Inc()
		}()

		id, ok := identity(w, req)
		if !ok {
			status = http.StatusUnauthorized
			return
		}
		if !HasContentType(req, "multipart/form-data") {
			status = http.StatusUnsupportedMediaType
			errors.WriteHTTPUnsupportedMediaType(w, "Requires multipart/form-data content type", nil)
			return
		}

		req.Body = http.MaxBytesReader(w, req.Body, d.maxUploadBytes())
		form, err := d.readUploadForm(req)
		if err != nil {
			var uerr *uploadError
			if !stderrors.As(err, &uerr) {
				uerr = invalidUpload(http.StatusInternalServerError, errors.CodeInternal, "Cannot store upload", err)
			}
			status = uerr.status
			log.LogError(requestID, "rejecting upload", err, "status", status)
			if uerr.status == http.StatusRequestEntityTooLarge {
				errors.WriteHTTPRequestEntityTooLarge(w, uerr.msg, uerr.err)
				return
			}
			errors.WriteHTTPError(w, uerr.status, uerr.code, uerr.msg, uerr.err)
			return
		}

		jobID, err := d.Queue.Enqueue(req.Context(), queue.UploadJob{
			ID:             config.NewJobID(),
			UserID:         id.UserID,
			SourceFilePath: form.sourcePath,
			Title:          form.title,
			Description:    form.description,
		})
		if err != nil {
			status = http.StatusInternalServerError
			if rmErr := os.Remove(form.sourcePath); rmErr != nil {
				log.LogError(requestID, "failed to remove unqueued upload", rmErr, "path", form.sourcePath)
			}
			errors.WriteHTTPInternalServerError(w, "Cannot queue transcode job", err)
			return
		}

		metrics.Metrics.UploadBytes.Add(float64(form.size))
		log.AddContext(requestID, "job_id", jobID)
		log.Log(requestID, "upload queued", "user_id", id.UserID, "bytes", form.size, "source", form.sourcePath)
		writeSuccess(w, http.StatusAccepted, "Video uploaded, processing started", UploadVODResponse{JobID: jobID})
	})
}

// readUploadForm streams the multipart body. The file goes straight to disk
// and is removed again if anything else about the request turns out invalid.
func (d *VODHandlersCollection) readUploadForm(req *http.Request) (form uploadForm, err error) {
	defer func() {
		if err != nil && form.sourcePath != "" {
			_ = os.Remove(form.sourcePath)
			form.sourcePath = ""
		}
	}()

	mr, err := req.MultipartReader()
	if err != nil {
		return form, invalidUpload(http.StatusBadRequest, errors.CodeValidation, "Invalid multipart body", err)
	}

	var titleSeen bool
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return form, bodyError(err)
		}

		switch part.FormName() {
		case "title":
			form.title, err = readField(part, maxTitleLen)
			titleSeen = true
		case "description":
			form.description, err = readField(part, maxDescLen)
		case uploadFileField:
			err = d.saveFilePart(part, &form)
		default:
			// unknown fields are drained and ignored
			_, err = io.Copy(io.Discard, part)
			if err != nil {
				err = bodyError(err)
			}
		}
		_ = part.Close()
		if err != nil {
			return form, err
		}
	}

	form.title = strings.TrimSpace(form.title)
	if !titleSeen || form.title == "" {
		return form, invalidUpload(http.StatusBadRequest, errors.CodeValidation, "title is required", errors.ErrValidation)
	}
	if form.sourcePath == "" {
		return form, invalidUpload(http.StatusBadRequest, errors.CodeValidation, "file is required", errors.ErrValidation)
	}
	return form, nil
}

func (d *VODHandlersCollection) saveFilePart(part *multipart.Part, form *uploadForm) error {
	if form.sourcePath != "" {
		return invalidUpload(http.StatusBadRequest, errors.CodeValidation, "only one file can be uploaded", errors.ErrValidation)
	}
	if !strings.HasPrefix(part.Header.Get("Content-Type"), "video/") {
		return invalidUpload(http.StatusUnsupportedMediaType, errors.CodeUnsupportedMedia, "file must be a video", errors.ErrValidation)
	}
	path, n, err := d.Storage.SaveIncoming(part, config.NewBaseName(), storage.SafeExt(part.FileName()))
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return bodyError(err)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		_ = os.Remove(path)
		return invalidUpload(http.StatusBadRequest, errors.CodeValidation, "file is empty", errors.ErrValidation)
	}
	form.sourcePath = path
	form.size = n
	return nil
}

func readField(part *multipart.Part, maxLen int) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, int64(maxLen)+1))
	if err != nil {
		return "", bodyError(err)
	}
	if n > int64(maxLen) {
		return "", invalidUpload(http.StatusBadRequest, errors.CodeValidation,
			fmt.Sprintf("%s must be at most %d bytes", part.FormName(), maxLen), errors.ErrValidation)
	}
	return buf.String(), nil
}

// bodyError tells an oversized body apart from other read failures.
func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return invalidUpload(http.StatusRequestEntityTooLarge, errors.CodeTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit), errors.ErrValidation)
	}
	var uerr *uploadError
	if stderrors.As(err, &uerr) {
		return err
	}
	return invalidUpload(http.StatusBadRequest, errors.CodeValidation, "Cannot read upload body", err)
}
