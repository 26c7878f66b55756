// Package middleware binds pairAuth.Engine to net/http.
//
// # Handlers
//
//   - [Authenticate] admits a request or answers 401 {"error":"Unauthorized"}.
//   - [Optional] attaches a principal when one can be established and never rejects.
//
// Both read the access token from the Authorization header ("Bearer <token>") or, when the
// header is absent, from the access cookie. The refresh token is only ever read from its
// cookie. When the engine rotates, the new access token is written as a cookie with the
// engine's [pairAuth.CookiePolicy] before the next handler runs.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. All decisions are delegated to
// Engine.Authenticate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Tell the client which check failed.
//   - Touch the refresh cookie on rotation.
package middleware
