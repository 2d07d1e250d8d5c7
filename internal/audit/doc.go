// Package audit delivers security-relevant events off the request path.
//
// A [Dispatcher] buffers events and relays them to one [Sink] on a single
// goroutine; when the buffer is full it either drops (counting the drop) or
// blocks, as configured. Sinks provided here are no-op, channel, JSON lines
// and slog.
//
// The Engine decides which events exist. This package must not import
// folioAuth.
package audit
