// Package password implements bcrypt password hashing and the password
// strength policy for folioAuth.
//
// # Contract
//
//   - Hash uses a per-hash random salt and a fixed work factor (cost).
//   - Verify never returns an error: malformed or foreign digests are a
//     non-match.
//   - VerifyDummy burns the same CPU as a real verification so callers can
//     keep the failure path timing uniform for unknown accounts.
//
// # What this package must NOT do
//
//   - Log or retain plaintext passwords.
//   - Import folioAuth or any internal package.
package password
