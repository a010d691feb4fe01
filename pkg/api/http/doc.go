// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Batch dispatch and worker status
//   - Context store reads and writes
//   - Impact analysis and project transformation
//   - Health checks
//   - Prometheus metrics
package http
