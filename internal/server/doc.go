// Package server hosts the read-only diagnostics HTTP service. It wires the
// Fiber app, request-ID and recover middlewares, and leaves route
// registration to the routes package so handlers stay testable in isolation.
package server
