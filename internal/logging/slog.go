package logging

import (
	"fmt"
	"log/slog"
	"os"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyComponent = "component"
	KeyImageID   = "image_id"
	KeyFolderID  = "folder_id"
	KeyStatus    = "status"
	KeyError     = "error"
)

// StatusStale marks a response served from an expired cache entry.
const StatusStale = "stale"

// New creates the process logger. Debug mode lowers the level and adds
// source positions.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	return slog.New(handler)
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// ImageID returns a slog attribute for a Drive image id.
func ImageID(id string) slog.Attr {
	return slog.String(KeyImageID, id)
}

// FolderID returns a slog attribute for a Drive folder id.
func FolderID(id string) slog.Attr {
	return slog.String(KeyFolderID, id)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from
// output, so Err(maybeNilErr) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeSecret returns a masked version of credential material for logging.
// Only the length is exposed; even a prefix of a private key or token can aid
// attacks.
func SanitizeSecret(secret string) string {
	if secret == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[secret:%d chars]", len(secret))
}
