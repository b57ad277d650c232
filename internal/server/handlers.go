package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/drivegallery/drivegallery/internal/errors"
	"github.com/drivegallery/drivegallery/internal/gallery"
	"github.com/drivegallery/drivegallery/internal/logging"
)

// Cache-Control values mirror a CDN-fronted deployment: listings revalidate
// every five minutes, content is immutable for as long as its ETag holds.
const (
	listingCacheControl = "public, s-maxage=300, stale-while-revalidate=600"
	contentCacheControl = "public, max-age=31536000, immutable, stale-while-revalidate=86400"
)

// listResponse is the envelope for folder listing responses.
type listResponse struct {
	Success       bool            `json:"success"`
	Images        []gallery.Image `json:"images"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
	Count         int             `json:"count"`
	Stale         bool            `json:"stale,omitempty"`
}

// imageResponse is the envelope for single-image metadata responses.
type imageResponse struct {
	Success bool          `json:"success"`
	Image   gallery.Image `json:"image"`
}

// imageRequest is the body of a POST /api/drive/images metadata lookup.
type imageRequest struct {
	ImageID string `json:"imageId"`
}

// handleListImages serves GET /api/drive/images: one page of the folder
// listing, newest first.
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	folderID := q.Get("folder")
	if folderID == "" {
		folderID = s.defaultFolderID
	}

	pageSize := 0
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, apperrors.Newf(apperrors.KindInvalidRequest,
				"invalid pageSize %q", raw))
			return
		}
		pageSize = n
	}

	page, err := s.gallery.ListImages(r.Context(), gallery.ListRequest{
		FolderID:  folderID,
		PageToken: q.Get("pageToken"),
		PageSize:  pageSize,
		Refresh:   q.Get("refresh") == "1" || q.Get("refresh") == "true",
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	setCORSHeaders(w.Header())
	w.Header().Set("Cache-Control", listingCacheControl)
	s.writeJSON(w, http.StatusOK, listResponse{
		Success:       true,
		Images:        page.Images,
		NextPageToken: page.NextPageToken,
		Count:         page.Count,
		Stale:         page.Stale,
	})
}

// handleGetImage serves POST /api/drive/images: metadata for a single image
// identified in the request body.
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.New(apperrors.KindInvalidRequest,
			"malformed request body"))
		return
	}
	if req.ImageID == "" {
		s.writeError(w, r, apperrors.New(apperrors.KindInvalidRequest,
			"missing imageId"))
		return
	}

	image, err := s.gallery.GetImage(r.Context(), req.ImageID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	setCORSHeaders(w.Header())
	w.Header().Set("Cache-Control", listingCacheControl)
	s.writeJSON(w, http.StatusOK, imageResponse{Success: true, Image: *image})
}

// handleImageContent serves GET and HEAD /api/drive/image/{id}: the content
// proxy with conditional-request support. Metadata is resolved before any
// byte of content moves, so failures produce clean JSON error responses.
func (s *Server) handleImageContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	meta, err := s.gallery.ResolveMetadata(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	etag := gallery.ETag(meta)
	setCORSHeaders(w.Header())
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", contentCacheControl)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	s.setContentHeaders(w.Header(), meta)

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := s.gallery.OpenContent(r.Context(), id)
	if err != nil {
		// Headers are set but nothing is written yet, so the error
		// response can still replace them.
		h := w.Header()
		h.Del("ETag")
		h.Del("Content-Type")
		h.Del("Content-Length")
		h.Del("Content-Disposition")
		s.writeError(w, r, err)
		return
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	s.metrics.BytesStreamed(n)
	if err != nil {
		// The status line is already on the wire. Abort the connection so
		// the client sees a truncated transfer instead of a clean EOF.
		s.logger.Error("content stream aborted",
			logging.ImageID(id), "bytes", n, logging.Err(err))
		panic(http.ErrAbortHandler)
	}
}

// handlePreflight serves OPTIONS /api/drive/image/{id} for browser CORS
// preflights.
func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	setCORSHeaders(h)
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Range, If-None-Match, If-Modified-Since")
	h.Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusOK)
}

// setContentHeaders stamps the response with everything known about the
// content before the stream starts.
func (s *Server) setContentHeaders(h http.Header, meta gallery.Metadata) {
	contentType := meta.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	if meta.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	h.Set("Content-Disposition", contentDisposition(meta.Name))
	h.Set("Accept-Ranges", "bytes")
	h.Set("X-Content-Type-Options", "nosniff")
}

// contentDisposition builds an inline disposition with the filename escaped
// for non-ASCII names.
func contentDisposition(name string) string {
	if name == "" {
		return "inline"
	}
	return "inline; filename*=UTF-8''" + url.PathEscape(name)
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Expose-Headers", "Content-Length, ETag")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", logging.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	setCORSHeaders(w.Header())
	apperrors.WriteHTTP(w, r, err, s.logger)
}
