// Package drive wraps the Google Drive v3 API for the gallery server.
//
// The Provider builds an authenticated, read-only Drive service from
// service-account secrets supplied through the environment and memoizes it
// for a bounded lifetime, so credentials are not re-exchanged on every
// request. The Client exposes the three operations the gallery needs:
// listing image files in a folder, fetching single-file metadata, and
// downloading file content as a stream.
//
// Remote failures are classified into the application error taxonomy here,
// at the API boundary, so callers never inspect googleapi errors themselves.
package drive
