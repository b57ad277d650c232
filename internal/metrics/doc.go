// Package metrics defines the Prometheus instruments for the gallery server:
// cache hit/miss rates, Drive API call outcomes, stale-listing fallbacks and
// streamed content volume. The instruments are exposed through the dedicated
// metrics listener in internal/server.
package metrics
