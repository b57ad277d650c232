package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/drivegallery/drivegallery/internal/cache"
	"github.com/drivegallery/drivegallery/internal/config"
	"github.com/drivegallery/drivegallery/internal/drive"
	apperrors "github.com/drivegallery/drivegallery/internal/errors"
	"github.com/drivegallery/drivegallery/internal/logging"
	"github.com/drivegallery/drivegallery/internal/metrics"
)

// ContentPathPrefix is the route prefix of the content-serving endpoint.
// Image record URLs are derived from it.
const ContentPathPrefix = "/api/drive/image/"

// imageIDPattern is the id syntax Drive uses. Anything else is rejected
// before any remote call is made.
var imageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateImageID checks that id is non-empty and matches the Drive id
// syntax.
func ValidateImageID(id string) error {
	if id == "" {
		return apperrors.New(apperrors.KindInvalidRequest, "image ID is required")
	}
	if !imageIDPattern.MatchString(id) {
		return apperrors.New(apperrors.KindInvalidRequest, "invalid image ID format").WithImageID(id)
	}
	return nil
}

// ContentPath returns the local content URL for an image id.
func ContentPath(id string) string {
	return ContentPathPrefix + id
}

// Store is the subset of the Drive client the service depends on. Tests
// substitute a fake.
type Store interface {
	ListImages(ctx context.Context, folderID, pageToken string, pageSize int64) (*drive.ListResult, error)
	GetFile(ctx context.Context, fileID string) (*drive.FileInfo, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Options configures a Service.
type Options struct {
	Store       Store
	MetadataTTL time.Duration
	ListingTTL  time.Duration
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	// Clock overrides the time source; tests use it for deterministic ETags.
	Clock func() time.Time
}

// Service ties the Drive store and the TTL caches together. Create one per
// process and share it across request handlers; all methods are safe for
// concurrent use.
type Service struct {
	store       Store
	metadata    *cache.Cache[Metadata]
	listings    *cache.Cache[Page]
	metadataTTL time.Duration
	listingTTL  time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a Service with empty caches.
func NewService(opts Options) *Service {
	if opts.MetadataTTL <= 0 {
		opts.MetadataTTL = config.DefaultMetadataTTL
	}
	if opts.ListingTTL <= 0 {
		opts.ListingTTL = config.DefaultListingTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:       opts.Store,
		metadata:    cache.New(cache.WithClock[Metadata](now)),
		listings:    cache.New(cache.WithClock[Page](now)),
		metadataTTL: opts.MetadataTTL,
		listingTTL:  opts.ListingTTL,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		now:         now,
	}
}

// listingKey builds the cache key for one listing request. Two different
// pagination requests are two different entries.
func listingKey(folderID, pageToken string, pageSize int64) string {
	return fmt.Sprintf("%s|%s|%d", folderID, pageToken, pageSize)
}

// clampPageSize applies the default and the upper bound.
func clampPageSize(n int) int64 {
	if n <= 0 {
		return config.DefaultPageSize
	}
	if n > config.MaxPageSize {
		return config.MaxPageSize
	}
	return int64(n)
}

// ListImages returns one page of image records for a folder. Results are
// cached per (folder, pageToken, pageSize); when Drive fails and a stale
// entry exists for the same key, the stale page is returned instead of the
// error.
func (s *Service) ListImages(ctx context.Context, req ListRequest) (*Page, error) {
	if req.FolderID == "" {
		return nil, apperrors.New(apperrors.KindConfiguration, "missing DRIVE_FOLDER_ID configuration")
	}

	pageSize := clampPageSize(req.PageSize)
	key := listingKey(req.FolderID, req.PageToken, pageSize)

	if req.Refresh {
		s.listings.Invalidate(key)
	} else if entry, ok := s.listings.Get(key); ok {
		s.metrics.CacheHit("listing")
		page := entry.Value
		return &page, nil
	}
	s.metrics.CacheMiss("listing")

	result, err := s.store.ListImages(ctx, req.FolderID, req.PageToken, pageSize)
	if err != nil {
		s.metrics.DriveCall("list", "error")
		if entry, ok, _ := s.listings.GetStale(key); ok {
			s.logger.Warn("listing fetch failed, serving stale page",
				logging.FolderID(req.FolderID),
				logging.Status(logging.StatusStale),
				logging.Err(err))
			s.metrics.StaleListing()
			page := entry.Value
			page.Stale = true
			return &page, nil
		}
		return nil, err
	}
	s.metrics.DriveCall("list", "success")

	page := Page{
		Images:        make([]Image, 0, len(result.Files)),
		NextPageToken: result.NextPageToken,
	}
	for _, f := range result.Files {
		page.Images = append(page.Images, imageFromFile(f))
	}
	page.Count = len(page.Images)

	s.listings.Put(key, page, s.listingTTL)
	return &page, nil
}

// GetImage returns the normalized record for one image id, going through the
// metadata cache.
func (s *Service) GetImage(ctx context.Context, id string) (*Image, error) {
	meta, err := s.ResolveMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	image := imageFromMetadata(meta)
	return &image, nil
}

// ResolveMetadata returns cached metadata for id, fetching from Drive on a
// miss. A fetch failure invalidates any cached entry for the id so a
// poisoned entry from a partially-failed attempt is never served.
func (s *Service) ResolveMetadata(ctx context.Context, id string) (Metadata, error) {
	if err := ValidateImageID(id); err != nil {
		return Metadata{}, err
	}

	if entry, ok := s.metadata.Get(id); ok {
		s.metrics.CacheHit("metadata")
		return entry.Value, nil
	}
	s.metrics.CacheMiss("metadata")

	info, err := s.store.GetFile(ctx, id)
	if err != nil {
		s.metrics.DriveCall("metadata", "error")
		s.metadata.Invalidate(id)
		return Metadata{}, withImageID(err, id)
	}
	s.metrics.DriveCall("metadata", "success")

	meta := Metadata{
		ID:          info.ID,
		Name:        info.Name,
		MimeType:    info.MimeType,
		Size:        info.Size,
		CreatedTime: info.CreatedTime,
		FetchedAt:   s.now(),
	}
	s.metadata.Put(id, meta, s.metadataTTL)
	return meta, nil
}

// OpenContent opens the image's byte stream from Drive. The caller must
// close the returned reader; cancelling ctx releases the upstream
// connection.
func (s *Service) OpenContent(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ValidateImageID(id); err != nil {
		return nil, err
	}

	body, err := s.store.Download(ctx, id)
	if err != nil {
		s.metrics.DriveCall("download", "error")
		return nil, withImageID(err, id)
	}
	s.metrics.DriveCall("download", "success")
	return body, nil
}

// ETag derives the validator for a metadata snapshot. Content is immutable
// per id, so the tag only changes when the metadata is re-fetched.
func ETag(meta Metadata) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%s-%d", meta.ID, meta.FetchedAt.UnixMilli()))
}

func imageFromFile(f *drive.FileInfo) Image {
	return Image{
		ID:           f.ID,
		Name:         f.Name,
		URL:          ContentPath(f.ID),
		ThumbnailURL: ContentPath(f.ID),
		CreatedTime:  f.CreatedTime,
		MimeType:     f.MimeType,
		Size:         f.Size,
	}
}

func imageFromMetadata(meta Metadata) Image {
	return Image{
		ID:           meta.ID,
		Name:         meta.Name,
		URL:          ContentPath(meta.ID),
		ThumbnailURL: ContentPath(meta.ID),
		CreatedTime:  meta.CreatedTime,
		MimeType:     meta.MimeType,
		Size:         meta.Size,
	}
}

// withImageID annotates an application error with the image id it concerns.
func withImageID(err error, id string) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.WithImageID(id)
	}
	return apperrors.Wrap(apperrors.KindUpstream, "drive request failed", err).WithImageID(id)
}
