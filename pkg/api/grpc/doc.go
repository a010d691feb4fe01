// Package grpc exposes the standard gRPC health service. Serving status
// follows the worker pool health monitor.
package grpc
