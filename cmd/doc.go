// Package cmd implements the command-line interface for drivegallery.
//
// This package provides the following commands:
//   - serve: Start the gallery HTTP server and the metrics listener
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
