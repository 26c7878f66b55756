// Package flows contains pure-function orchestrators for the Engine operations.
//
// Each flow function (RunAuthenticate, RunRegister, RunLogin, ...) accepts a typed
// dependency struct and returns results without side effects beyond those dependencies.
// Failures come back as FailureKind enums or injected sentinel errors so the root package
// owns the public error surface.
//
// # Architecture boundaries
//
// Flow functions coordinate the token codec, password hasher, user provider, audit and
// metrics callbacks. They do NOT own any of these resources; ownership stays with the
// Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import pairAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
