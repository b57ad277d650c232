package drive

import "time"

// FileInfo is the metadata the gallery keeps about one Drive file.
type FileInfo struct {
	// ID is the store-assigned identifier, treated as the file's stable
	// identity. Never empty.
	ID string `json:"id"`

	// Name is the display name of the file.
	Name string `json:"name"`

	// MimeType is the MIME type reported by Drive.
	MimeType string `json:"mimeType"`

	// Size is the content size in bytes.
	Size int64 `json:"size"`

	// CreatedTime is when the file was created in Drive.
	CreatedTime time.Time `json:"createdTime"`
}

// ListResult is one page of folder listing results.
type ListResult struct {
	// Files are the matching files, ordered by creation time descending.
	Files []*FileInfo `json:"files"`

	// NextPageToken is the opaque continuation token for the next page.
	// Empty when this is the last page.
	NextPageToken string `json:"nextPageToken,omitempty"`
}
