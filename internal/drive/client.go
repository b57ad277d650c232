package drive

import (
	"context"
	"fmt"
	"io"
	"time"

	drive "google.golang.org/api/drive/v3"
)

const (
	// listFields limits listing responses to the fields the gallery maps.
	listFields = "nextPageToken, files(id, name, mimeType, size, createdTime)"

	// fileFields limits single-file metadata responses the same way.
	fileFields = "id, name, mimeType, size, createdTime"

	// imageQuery matches non-trashed image files inside one parent folder.
	imageQuery = "'%s' in parents and mimeType contains 'image/' and trashed=false"
)

// Client exposes the Drive operations the gallery server needs. All calls
// obtain the underlying service from the Provider, so credential renewal is
// transparent to callers.
type Client struct {
	provider *Provider
}

// NewClient creates a Client backed by the given credential provider.
func NewClient(provider *Provider) *Client {
	return &Client{provider: provider}
}

// ListImages fetches one page of image files inside folderID, ordered by
// creation time descending.
func (c *Client) ListImages(ctx context.Context, folderID, pageToken string, pageSize int64) (*ListResult, error) {
	service, err := c.provider.Service(ctx)
	if err != nil {
		return nil, err
	}

	call := service.Files.List().
		Context(ctx).
		Q(fmt.Sprintf(imageQuery, folderID)).
		OrderBy("createdTime desc").
		PageSize(pageSize).
		Fields(listFields)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	fileList, err := call.Do()
	if err != nil {
		return nil, classify(err, "list images in folder "+folderID)
	}

	result := &ListResult{
		Files:         make([]*FileInfo, 0, len(fileList.Files)),
		NextPageToken: fileList.NextPageToken,
	}
	for _, f := range fileList.Files {
		result.Files = append(result.Files, convertFile(f))
	}
	return result, nil
}

// GetFile fetches metadata for one file by id.
func (c *Client) GetFile(ctx context.Context, fileID string) (*FileInfo, error) {
	service, err := c.provider.Service(ctx)
	if err != nil {
		return nil, err
	}

	file, err := service.Files.Get(fileID).
		Context(ctx).
		Fields(fileFields).
		Do()
	if err != nil {
		return nil, classify(err, "get file "+fileID)
	}

	return convertFile(file), nil
}

// Download opens the file's content as a byte stream. The caller owns the
// returned reader and must close it; cancelling ctx releases the underlying
// connection.
func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	service, err := c.provider.Service(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := service.Files.Get(fileID).
		Context(ctx).
		Download()
	if err != nil {
		return nil, classify(err, "download file "+fileID)
	}

	return resp.Body, nil
}

// convertFile maps a Drive API file onto FileInfo. Drive reports timestamps
// as RFC 3339 strings; an unparseable one is left as the zero time.
func convertFile(f *drive.File) *FileInfo {
	info := &FileInfo{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
	}
	if f.CreatedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
			info.CreatedTime = t
		}
	}
	return info
}
