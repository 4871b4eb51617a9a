package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// Bad upload content type, size or form fields
	ErrValidation = errors.New("validation error")
	// Visibility or ownership violation
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error codes returned in the "code" field of every HTTP error body
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation_error"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeUnsupportedMedia = "unsupported_media_type"
	CodeTooLarge         = "payload_too_large"
	CodeInternal         = "internal_error"
	CodeTooManyRequests  = "too_many_requests"

	// Watch failures
	CodeAssetNotFound       = "asset_not_found"
	CodeAssetStorageMissing = "asset_storage_missing"
	CodeQualityNotFound     = "quality_not_found"
	CodeInvalidRange        = "invalid_range"
	CodeRangeNotSatisfiable = "range_not_satisfiable"
)

type unretriableError struct {
	error
}

func (e unretriableError) Unwrap() error {
	return e.error
}

// Unretriable returns an error that should be treated as final. Retry loops
// (backoff.Retry) stop immediately on it.
func Unretriable(err error) error {
	return backoff.Permanent(unretriableError{err})
}

// IsUnretriable returns whether the error was marked as unretriable anywhere in its chain.
func IsUnretriable(err error) bool {
	return errors.As(err, &unretriableError{})
}

type apiError struct {
	Msg    string `json:"message"`
	Code   string `json:"code"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func (e apiError) Error() string {
	return e.Msg
}

// WriteHTTPError writes a JSON error body with an explicit client-actionable code.
func WriteHTTPError(w http.ResponseWriter, status int, code, msg string, err error) apiError {
	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": msg, "code": code}
	if errorDetail != "" {
		body["error_detail"] = errorDetail
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}
	return apiError{Msg: msg, Code: code, Status: status, Err: err}
}

// HTTP Errors
func WriteHTTPUnauthorized(w http.ResponseWriter, msg string, err error) apiError {
	return WriteHTTPError(w, http.StatusUnauthorized, CodeUnauthorized, msg, err)
}

func WriteHTTPForbidden(w http.ResponseWriter, msg string, err error) apiError {
	return WriteHTTPError(w, http.StatusForbidden, CodeForbidden, msg, err)
}

func WriteHTTPNotFound(w http.ResponseWriter, msg string, err error) apiError {
	return WriteHTTPError(w, http.StatusNotFound, CodeNotFound, msg, err)
}

func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) apiError {
	return WriteHTTPError(w, http.StatusBadRequest, CodeBadRequest, msg, err)
}

func WriteHTTPUnsupportedMediaType(w http.ResponseWriter, msg string, err error) apiError {
	return WriteHTTPError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMedia, msg, err)
}

func WriteHTTPRequestEntityTooLarge(w http.ResponseWriter, msg string, err error) apiError {
	return WriteHTTPError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, msg, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) apiError {
	return WriteHTTPError(w, http.StatusInternalServerError, CodeInternal, msg, err)
}

func WriteHTTPBadBodySchema(where string, w http.ResponseWriter, errors []gojsonschema.ResultError) apiError {
	sb := strings.Builder{}
	sb.WriteString("Body validation error in ")
	sb.WriteString(where)
	sb.WriteString(" ")
	for i := 0; i < len(errors); i++ {
		sb.WriteString(errors[i].String())
		sb.WriteString(" ")
	}
	return WriteHTTPError(w, http.StatusBadRequest, CodeValidation, strings.TrimSpace(sb.String()), nil)
}
