// Package internal holds token helpers private to folioAuth: random token
// generation, SHA-256 digests and constant-time comparison.
//
// # Sub-packages
//
//   - audit: async event dispatch with no-op, channel, JSON-lines and slog sinks
//   - rate: Redis fixed-window rate limiter
package internal
