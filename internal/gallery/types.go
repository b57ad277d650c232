package gallery

import "time"

// Image is the normalized record the browser UI consumes. Both URLs point
// back into this server's own content endpoint, never at Drive directly.
type Image struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	CreatedTime  time.Time `json:"createdTime"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
}

// Page is one bounded, ordered batch of listing results.
type Page struct {
	Images []Image `json:"images"`

	// NextPageToken continues the listing; empty on the last page.
	NextPageToken string `json:"nextPageToken,omitempty"`

	// Count is the number of images in this page.
	Count int `json:"count"`

	// Stale marks a page served from an expired cache entry after a failed
	// refresh from Drive.
	Stale bool `json:"stale,omitempty"`
}

// Metadata is what the content proxy needs to answer conditional requests
// and set content headers without touching the byte stream.
type Metadata struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	CreatedTime time.Time

	// FetchedAt is when this metadata was fetched from Drive. The ETag is
	// derived from it, so an ETag stays stable for one cache TTL window.
	FetchedAt time.Time
}

// ListRequest describes one folder listing call.
type ListRequest struct {
	FolderID  string
	PageToken string
	PageSize  int

	// Refresh drops the cached page for this key before fetching.
	Refresh bool
}
