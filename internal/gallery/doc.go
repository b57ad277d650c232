// Package gallery implements the image gallery service: folder listing pages
// and single-file metadata backed by Google Drive through a TTL cache, ETag
// computation for conditional requests, and content stream access.
//
// The service is a constructed object created once per process and injected
// into the HTTP handlers, which keeps the caches and the memoized credential
// handle testable with fake stores and fake clocks.
//
// Caching policy is deliberately asymmetric: a failed metadata fetch
// invalidates the cached entry for that id (content must never be served
// under a stale ETag), while a failed listing fetch falls back to the stale
// page for the same key, since a stale list is only a soft degradation.
package gallery
