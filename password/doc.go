// Package password implements password hashing and verification with argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format with unpadded base64 segments:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify reads the parameters back from the string, so hashes made with older costs keep
// working. [Argon2.NeedsUpgrade] reports when a stored hash is weaker than the current
// configuration; the engine re-hashes such passwords on the next successful login when the
// user store can persist the new hash.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other pairAuth package.
//   - Log plaintext passwords.
package password
