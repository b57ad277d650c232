// Package server provides the HTTP surface of the gallery: the folder
// listing and single-metadata endpoints, the content streaming proxy with
// conditional-request support, CORS preflight, Kubernetes-style health
// probes, and a dedicated Prometheus metrics listener.
//
// Handlers hold no state of their own; they delegate to the injected
// gallery.Service, which owns the caches and the Drive credential handle.
package server
