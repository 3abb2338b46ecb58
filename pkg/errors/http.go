package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTP status code mappings
var errorStatusCodes = map[error]int{
	ErrNotFound:           http.StatusNotFound,
	ErrInvalidInput:       http.StatusBadRequest,
	ErrInternalError:      http.StatusInternalServerError,
	ErrNotImplemented:     http.StatusNotImplemented,
	ErrTimeout:            http.StatusGatewayTimeout,
	ErrUnavailable:        http.StatusServiceUnavailable,
	ErrPermissionDenied:   http.StatusForbidden,
	ErrFailedPrecondition: http.StatusPreconditionFailed,
	ErrCanceled:           http.StatusRequestTimeout,

	ErrAlreadyRecording:     http.StatusConflict,
	ErrNotCaptured:          http.StatusPreconditionFailed,
	ErrUnknownSession:       http.StatusNotFound,
	ErrTranscriptionFailed:  http.StatusInternalServerError,
	ErrNoSpeech:             http.StatusUnprocessableEntity,
	ErrClassificationFailed: http.StatusInternalServerError,
	ErrAnalysisFailed:       http.StatusInternalServerError,
	ErrBackend:              http.StatusBadGateway,
	ErrStoreWrite:           http.StatusInternalServerError,
}

// Error code to HTTP status mapping, consulted when the sentinel is unknown
var errorCodeStatusMap = map[string]int{
	"NOT_FOUND":             http.StatusNotFound,
	"INVALID_INPUT":         http.StatusBadRequest,
	"INTERNAL_ERROR":        http.StatusInternalServerError,
	"PERMISSION_DENIED":     http.StatusForbidden,
	"ALREADY_RECORDING":     http.StatusConflict,
	"TRANSCRIPTION_FAILED":  http.StatusInternalServerError,
	"NO_SPEECH":             http.StatusUnprocessableEntity,
	"CLASSIFICATION_FAILED": http.StatusInternalServerError,
	"ANALYSIS_FAILED":       http.StatusInternalServerError,
	"BACKEND_ERROR":         http.StatusBadGateway,
	"STORE_WRITE_FAILED":    http.StatusInternalServerError,
	"TIMEOUT":               http.StatusGatewayTimeout,
}

// WriteError writes a standardized error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error) {
	var statusCode int
	var response map[string]interface{}

	var serr *Error
	switch {
	case err == nil:
		statusCode = http.StatusInternalServerError
		response = map[string]interface{}{
			"status": "error",
			"error":  "Unknown error",
		}
	case errors.As(err, &serr):
		statusCode = HTTPStatusFromError(err)
		response = serr.AsJSON()
		response["status"] = "error"
		response["error"] = err.Error()
	default:
		statusCode = HTTPStatusFromError(err)
		response = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(response)
}

// HTTPStatusFromError determines the appropriate HTTP status code for an error
func HTTPStatusFromError(err error) int {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if code, ok := errorStatusCodes[e]; ok {
			return code
		}
	}

	if code := GetErrorCode(err); code != "" {
		if status, ok := errorCodeStatusMap[code]; ok {
			return status
		}
	}

	return http.StatusInternalServerError
}
