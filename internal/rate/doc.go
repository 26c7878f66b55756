// Package rate implements the fixed-window request limiter used by the HTTP server.
//
// # Window semantics
//
// A window starts with the first hit on a key and lasts Config.Window. The counter is an
// INCR with an EXPIRE on the first hit (Redis) or a map entry with a deadline (memory).
// Keys are prefixed with "rl:".
//
// # What this package must NOT do
//
//   - Decide what a key is. Callers pass the client IP or any other identifier.
//   - Touch the authentication path. The limiter sits in front of routing only.
package rate
