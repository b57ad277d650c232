package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error into one of the failure categories
// the HTTP layer knows how to map to a status code.
type Kind int

const (
	// KindUpstream covers any remote failure that has no more specific
	// classification, including stream errors mid-transfer. Safe to retry
	// with backoff.
	KindUpstream Kind = iota

	// KindConfiguration marks missing or malformed deployment configuration
	// (service-account secrets, folder id). Fatal; not retryable without
	// operator intervention.
	KindConfiguration

	// KindInvalidRequest marks a client error such as a malformed image id
	// or a missing required body field.
	KindInvalidRequest

	// KindNotFound means the remote store reports the id does not exist.
	KindNotFound

	// KindPermissionDenied means the remote store rejected our credentials
	// for this resource.
	KindPermissionDenied

	// KindRateLimited means the remote store's quota was exceeded. Safe to
	// retry after backoff.
	KindRateLimited
)

// String returns a short name for the kind, used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "upstream"
	}
}

// HTTPStatus returns the HTTP status code this kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindConfiguration:
		return http.StatusBadRequest
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable error code clients receive for the kind.
func (k Kind) Code() string {
	switch k {
	case KindConfiguration:
		return "CONFIGURATION_ERROR"
	case KindInvalidRequest:
		return "INVALID_REQUEST"
	case KindNotFound:
		return "IMAGE_NOT_FOUND"
	case KindPermissionDenied:
		return "ACCESS_DENIED"
	case KindRateLimited:
		return "RATE_LIMIT_EXCEEDED"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error is the application error type carried between the Drive layer, the
// gallery service and the HTTP handlers.
type Error struct {
	Kind    Kind
	Message string

	// ImageID is set for content and single-metadata failures so the HTTP
	// layer can echo it back to the client.
	ImageID string

	err error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping an underlying cause.
// The cause is logged server-side but never surfaced to clients.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// WithImageID returns a copy of the error annotated with the image id it
// relates to.
func (e *Error) WithImageID(id string) *Error {
	clone := *e
	clone.ImageID = id
	return &clone
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// KindOf extracts the Kind from err. Errors that are not *Error are treated
// as upstream failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUpstream
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the failure is worth retrying after backoff.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindUpstream:
		return true
	default:
		return false
	}
}
