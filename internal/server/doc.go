// Package server provides the exporter's HTTP surface.
//
// Available endpoints:
//   - /           : Web UI showing exporter status and information
//   - /metrics    : Prometheus metrics endpoint
//   - /health     : Liveness probe (always returns 200)
//   - /ready      : Readiness probe (returns 200 only after the first
//     polling cycle has completed)
//
// The server is configured with sensible timeout defaults:
//   - Read timeout: 15 seconds
//   - Write timeout: 15 seconds
//   - Idle timeout: 60 seconds
//
// Metrics are served from the registry handed to NewServer, so only
// the metrics the exporter registered are exposed. The main type is
// Server, which manages the HTTP server lifecycle and provides
// methods for starting and graceful shutdown.
package server
