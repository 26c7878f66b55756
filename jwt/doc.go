// Package jwt encodes and decodes the signed access and refresh tokens used by pairAuth.
//
// # Token kinds
//
// Access and refresh tokens are both HS256 JWTs carrying the principal (uid, email), the
// token kind, and the iat/exp temporal claims. Each kind is signed with its own secret, so
// an access token never verifies as a refresh token and vice versa.
//
// # Failure taxonomy
//
// Decode reports exactly one of [ErrMalformed], [ErrInvalidSignature] or [ErrExpired].
// [Classify] turns those errors into a [FailureKind] for logging and metrics.
//
// # What this package must NOT do
//
//   - Import pairAuth or any sibling package.
//   - Perform I/O or keep mutable state after [NewManager] returns.
//   - Decide rotation policy (that belongs to the Engine).
package jwt
