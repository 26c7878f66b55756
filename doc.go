// Package pairAuth provides dual-token authentication with transparent refresh: short-lived
// access tokens, long-lived refresh tokens, and silent rotation of an unusable access token
// while the refresh token is still valid.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// pairAuth is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (Principal, TokenPair, AuthResult, UserRecord). Token encoding lives in the jwt
// sub-package; the decision procedures live under internal/flows. HTTP transport is the
// middleware package's job.
//
// # What this package must NOT do
//
//   - Reveal why an authentication failed to a client. AuthResult.Reason is for logs,
//     metrics and audit only.
//   - Perform I/O on the authentication path. Only the account operations call the
//     UserProvider.
//   - Revoke tokens. Tokens stay valid until they expire; logout only clears cookies.
//
// # Performance contract
//
// Authenticate is the hot path: at most two HMAC verifications and one signing, no
// allocation beyond the token strings, no goroutines.
package pairAuth
