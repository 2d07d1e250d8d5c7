// Package middleware adapts the folioAuth engine to net/http.
//
// # Handlers
//
//   - [Session] resolves the session cookie (or a bearer token) into claims,
//     refreshes role and status from the account store, and stores the
//     claims in the request context.
//   - [Gate] runs the route authorizer for page navigations and redirects.
//   - [RequireSession] and [RequireAdmin] repeat the role and ban checks
//     inline for API routes.
//
// This package translates HTTP semantics into Engine calls. It does not
// parse tokens or read the store itself.
package middleware
