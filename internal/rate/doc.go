// Package rate provides the Redis-backed fixed-window counter used to limit
// token-issuing endpoints per client IP.
//
// # Window semantics
//
// Fixed-window counters: one Lua script runs INCR and, on the first hit,
// PEXPIRE. Later hits never extend the window. Keys are
// <prefix>:<scope>:<client key>, e.g. rl:register:203.0.113.7.
//
// # What this package must NOT do
//
//   - Decide fail-open versus fail-closed; callers receive ErrRedisUnavailable
//     and apply their own policy.
//   - Be imported outside the folioAuth module.
package rate
