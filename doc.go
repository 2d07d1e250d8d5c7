// Package folioAuth is an account authentication and session authorization
// engine: password and OAuth sign-in, email verification, password reset,
// TOTP two-factor, signed session claims and an administrator role.
//
// Engine methods are safe for concurrent use once [Builder.Build] returns.
// Persistence is behind [AccountStore] (see store/postgres and store/memory),
// out-of-band links go through a [Mailer], and per-IP rate limits use Redis.
//
// # Architecture boundaries
//
// The root package holds the domain rules and the [Engine]. HTTP transport
// lives in httpapi and middleware, the page route table in route, the
// OAuth handshake in oauth and the session token codec in jwt. None of them
// are imported from here except jwt.
//
// # What this package must NOT do
//
//   - Log or return raw tokens, password hashes or TOTP secrets.
//   - Tell a caller whether an email is registered through a login or
//     reset response.
//   - Trust carried-over session claims for role or ban status.
package folioAuth
