package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivegallery/drivegallery/internal/drive"
	apperrors "github.com/drivegallery/drivegallery/internal/errors"
	"github.com/drivegallery/drivegallery/internal/gallery"
)

type fakeStore struct {
	mu sync.Mutex

	listResult *drive.ListResult
	listErr    error
	listCalls  int

	files     map[string]*drive.FileInfo
	fileErr   error
	fileCalls int

	content       map[string]io.ReadCloser
	downloadErr   error
	downloadCalls int

	// downloadFn, when set, replaces the map lookup so a test can hand out
	// a reader tied to the request context.
	downloadFn func(ctx context.Context) (io.ReadCloser, error)
}

func (f *fakeStore) ListImages(_ context.Context, _, _ string, _ int64) (*drive.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listResult, nil
}

func (f *fakeStore) GetFile(_ context.Context, fileID string) (*drive.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileCalls++
	if f.fileErr != nil {
		return nil, f.fileErr
	}
	info, ok := f.files[fileID]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "image not found")
	}
	return info, nil
}

func (f *fakeStore) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadCalls++
	if f.downloadFn != nil {
		return f.downloadFn(ctx)
	}
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	body, ok := f.content[fileID]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "image not found")
	}
	return body, nil
}

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, store *fakeStore) *Server {
	t.Helper()

	svc := gallery.NewService(gallery.Options{
		Store:       store,
		MetadataTTL: 5 * time.Minute,
		ListingTTL:  5 * time.Minute,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:       func() time.Time { return testTime },
	})

	return New(Options{
		Addr:            ":0",
		Gallery:         svc,
		DefaultFolderID: "folder-1",
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func testFile(id, name string) *drive.FileInfo {
	return &drive.FileInfo{
		ID:          id,
		Name:        name,
		MimeType:    "image/jpeg",
		Size:        1024,
		CreatedTime: testTime.Add(-time.Hour),
	}
}

func TestListImages(t *testing.T) {
	store := &fakeStore{
		listResult: &drive.ListResult{
			Files: []*drive.FileInfo{
				testFile("a1", "sunset.jpg"),
				testFile("b2", "dunes.jpg"),
			},
			NextPageToken: "tok-2",
		},
	}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/images", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, listingCacheControl, rec.Header().Get("Cache-Control"))

	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "tok-2", body.NextPageToken)
	require.Len(t, body.Images, 2)
	assert.Equal(t, "/api/drive/image/a1", body.Images[0].URL)
	assert.Equal(t, "/api/drive/image/a1", body.Images[0].ThumbnailURL)
	assert.False(t, body.Stale)
}

func TestListImagesInvalidPageSize(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store)

	for _, raw := range []string{"zero", "-3", "0"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/drive/images?pageSize="+raw, nil)
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "pageSize=%s", raw)

		var body apperrors.HTTPErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "INVALID_REQUEST", body.Error.Code)
	}
	assert.Equal(t, 0, store.listCalls)
}

func TestListImagesMissingFolder(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store)
	srv.defaultFolderID = ""

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/images", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CONFIGURATION_ERROR", body.Error.Code)
	assert.Equal(t, 0, store.listCalls)
}

func TestListImagesFolderOverride(t *testing.T) {
	store := &fakeStore{listResult: &drive.ListResult{}}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/images?folder=other", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.listCalls)
}

func TestListImagesUpstreamError(t *testing.T) {
	store := &fakeStore{
		listErr: apperrors.Wrap(apperrors.KindUpstream, "drive list failed", errors.New("boom")),
	}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/images", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestGetImage(t *testing.T) {
	store := &fakeStore{
		files: map[string]*drive.FileInfo{"a1": testFile("a1", "sunset.jpg")},
	}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/drive/images",
		strings.NewReader(`{"imageId":"a1"}`))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body imageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "a1", body.Image.ID)
	assert.Equal(t, "sunset.jpg", body.Image.Name)
	assert.Equal(t, "/api/drive/image/a1", body.Image.URL)
}

func TestGetImageBadBody(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store)

	cases := map[string]string{
		"malformed json":  `{"imageId":`,
		"missing imageId": `{}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/drive/images",
				strings.NewReader(payload))
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body apperrors.HTTPErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "INVALID_REQUEST", body.Error.Code)
		})
	}
	assert.Equal(t, 0, store.fileCalls)
}

func TestImageContent(t *testing.T) {
	store := &fakeStore{
		files:   map[string]*drive.FileInfo{"a1": testFile("a1", "sunset.jpg")},
		content: map[string]io.ReadCloser{"a1": io.NopCloser(strings.NewReader("jpegbytes"))},
	}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/image/a1", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpegbytes", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1024", rec.Header().Get("Content-Length"))
	assert.Equal(t, "inline; filename*=UTF-8''sunset.jpg", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, contentCacheControl, rec.Header().Get("Cache-Control"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	wantETag := fmt.Sprintf("%q", fmt.Sprintf("a1-%d", testTime.UnixMilli()))
	assert.Equal(t, wantETag, rec.Header().Get("ETag"))
}

func TestImageContentNotModified(t *testing.T) {
	store := &fakeStore{
		files:   map[string]*drive.FileInfo{"a1": testFile("a1", "sunset.jpg")},
		content: map[string]io.ReadCloser{"a1": io.NopCloser(strings.NewReader("jpegbytes"))},
	}
	srv := newTestServer(t, store)

	etag := fmt.Sprintf("%q", fmt.Sprintf("a1-%d", testTime.UnixMilli()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/image/a1", nil)
	req.Header.Set("If-None-Match", etag)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, etag, rec.Header().Get("ETag"))
	assert.Equal(t, 0, store.downloadCalls)
}

func TestImageContentHead(t *testing.T) {
	store := &fakeStore{
		files: map[string]*drive.FileInfo{"a1": testFile("a1", "sunset.jpg")},
	}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/api/drive/image/a1", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1024", rec.Header().Get("Content-Length"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Equal(t, 0, store.downloadCalls)
}

func TestImageContentNotFound(t *testing.T) {
	store := &fakeStore{files: map[string]*drive.FileInfo{}}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/image/missing", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "IMAGE_NOT_FOUND", body.Error.Code)
	assert.Equal(t, "missing", body.Error.ImageID)
}

func TestImageContentRateLimited(t *testing.T) {
	store := &fakeStore{
		fileErr: apperrors.New(apperrors.KindRateLimited, "rate limit exceeded"),
	}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/image/a1", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error.Code)
}

func TestImageContentInvalidID(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/image/a.b", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, store.fileCalls)
	assert.Equal(t, 0, store.downloadCalls)
}

// failingReader yields some bytes, then an upstream error mid-stream.
type failingReader struct {
	data io.Reader
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.data.Read(p)
	if err == io.EOF {
		return n, f.err
	}
	return n, err
}

func (f *failingReader) Close() error { return nil }

func TestImageContentMidStreamAbort(t *testing.T) {
	store := &fakeStore{
		files: map[string]*drive.FileInfo{"a1": testFile("a1", "sunset.jpg")},
		content: map[string]io.ReadCloser{"a1": &failingReader{
			data: bytes.NewReader([]byte("partial")),
			err:  errors.New("connection reset"),
		}},
	}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/image/a1", nil)

	// Recoverer re-panics ErrAbortHandler so net/http tears the
	// connection down instead of finishing the response cleanly.
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		srv.Handler().ServeHTTP(rec, req)
	})
	assert.Equal(t, "partial", rec.Body.String())
}

// trackedReader records whether the upstream body was released.
type trackedReader struct {
	io.Reader
	closed bool
}

func (r *trackedReader) Close() error {
	r.closed = true
	return nil
}

// blockingReader streams one byte, then parks until its context is
// cancelled, standing in for a stalled upstream transfer.
type blockingReader struct {
	ctx    context.Context
	closed chan struct{}

	mu   sync.Mutex
	sent bool
	once sync.Once
}

func (r *blockingReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	first := !r.sent
	r.sent = true
	r.mu.Unlock()

	if first && len(p) > 0 {
		p[0] = 'x'
		return 1, nil
	}
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func (r *blockingReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func TestImageContentClientCancelReleasesUpstream(t *testing.T) {
	started := make(chan struct{})
	closed := make(chan struct{})
	store := &fakeStore{
		files: map[string]*drive.FileInfo{"a1": testFile("a1", "sunset.jpg")},
	}
	store.downloadFn = func(ctx context.Context) (io.ReadCloser, error) {
		close(started)
		return &blockingReader{ctx: ctx, closed: closed}, nil
	}
	srv := newTestServer(t, store)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/drive/image/a1", nil)
	require.NoError(t, err)

	clientDone := make(chan struct{})
	go func() {
		defer close(clientDone)
		resp, err := ts.Client().Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("content stream never started")
	}

	// Dropping the client must cancel the request context and release the
	// upstream body.
	cancel()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream body was not released after client cancel")
	}
	<-clientDone
}

func TestImageContentReleasesUpstreamBody(t *testing.T) {
	body := &trackedReader{Reader: strings.NewReader("jpegbytes")}
	store := &fakeStore{
		files:   map[string]*drive.FileInfo{"a1": testFile("a1", "sunset.jpg")},
		content: map[string]io.ReadCloser{"a1": body},
	}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/drive/image/a1", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.closed, "upstream body must be closed after the stream ends")
}

func TestPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/drive/image/a1", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, HEAD, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Range, If-None-Match, If-Modified-Since", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "Content-Length, ETag", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestMetadataCachedAcrossContentRequests(t *testing.T) {
	store := &fakeStore{
		files: map[string]*drive.FileInfo{"a1": testFile("a1", "sunset.jpg")},
	}
	srv := newTestServer(t, store)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodHead, "/api/drive/image/a1", nil)
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1, store.fileCalls)
}
