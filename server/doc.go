// Package server exposes the search subsystem's REST surface: search,
// index, status, and health endpoints with structured JSON error envelopes.
package server
