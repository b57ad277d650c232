package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// retryAfterSeconds is the hint returned with 429 responses. The Drive API
// does not tell us when quota resets, so a fixed backoff is advertised.
const retryAfterSeconds = 60

// HTTPError is the body of the "error" field in an error response.
type HTTPError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ImageID   string `json:"imageId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// HTTPErrorResponse is the structured JSON body returned for every error.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// WriteHTTP writes err as a structured JSON error response. Internal detail
// stays in the server log; the client sees only the code, a short message and
// the echoed image id. Error responses must never be cached.
func WriteHTTP(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	kind := KindOf(err)
	status := kind.HTTPStatus()

	body := HTTPErrorResponse{
		Error: HTTPError{
			Code:    kind.Code(),
			Message: clientMessage(err, kind),
		},
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		body.Error.ImageID = appErr.ImageID
	}
	if status >= http.StatusInternalServerError {
		body.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		body.Error.RequestID = reqID
	}

	if logger != nil {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"kind", kind.String(),
			"error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// clientMessage picks the message surfaced to the client. Upstream failures
// get a generic message so remote error detail never leaks.
func clientMessage(err error, kind Kind) string {
	if kind == KindUpstream {
		return "internal server error"
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
