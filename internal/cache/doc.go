// Package cache provides a small in-process TTL cache with stale reads.
//
// The gallery service uses two instances of it: one for single-file metadata
// and one for folder listing pages. Expired entries are invisible to Get but
// remain readable through GetStale until a sweep or explicit invalidation
// removes them, which lets the listing path degrade to stale data when the
// remote store is unavailable.
package cache
