// Package session defines the per-attempt context record that the step-up
// engine threads through every controller call, plus a compact binary
// encoding and an optional Redis-backed persistence store for it.
//
// # Re-entrancy model
//
// The engine is re-entered fresh on every host postback. Nothing survives in
// process memory between calls: the [Context] value is the only state, and
// the host is responsible for persisting it between postbacks, either
// opaquely in its own session machinery or through [Store].
//
// # Binary encoding
//
// Contexts serialize to a versioned binary format via [Encode]/[Decode].
// The format is append-only: new versions add fields but never reinterpret
// old ones. Decode rejects unknown versions and truncated or trailing data.
//
// # What this package must NOT do
//
//   - Import the root package (no upward imports).
//   - Make policy decisions; it is a dumb record plus codec plus store.
//   - Store plaintext secrets: candidate PINs are already hashed and
//     challenge payloads are host-opaque by contract.
package session
