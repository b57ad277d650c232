// Package logging provides structured logging utilities for the gallery
// server.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithComponent(slog.Default(), "drive")
//	logger.Info("listing folder",
//	    logging.FolderID(folderID))
//
// Sanitize sensitive data before logging:
//
//	logger.Debug("loaded credentials",
//	    "private_key", logging.SanitizeSecret(key))
//
// # Security Considerations
//
// Service-account key material and OAuth tokens must never reach the log
// stream; SanitizeSecret exposes only the length.
package logging
