// Package password implements secret hashing and verification with Argon2id defaults.
// The engine uses it for the numeric PIN that can gate a second factor.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The hasher supports transparent parameter upgrades: if the stored hash was
// produced with weaker parameters, [Argon2.NeedsUpgrade] returns true so the
// caller can re-hash on the next successful verification.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets; callers supply plaintext and receive hashes.
//   - Import any other package of this module.
//   - Log plaintext secrets or hash parameters at runtime.
package password
