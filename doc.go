// Package adfsmfa provides a second-factor authentication decision engine:
// a finite-state controller that sits between an identity provider's
// primary-authentication pipeline and a set of pluggable factor backends
// (OTP, email, SMS, biometric, PIN, cloud relay) and decides, for every
// postback, which screen to present next or whether the attempt concludes
// with claims or a terminal lock.
//
// The engine is re-entered fresh on every postback and holds no in-memory
// continuation between calls: all attempt state round-trips through the
// [session.Context] the host persists. Engine methods are safe to call from
// multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// adfsmfa is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([UserRepository], [FactorBackend],
// [Presenter], [PasswordManager], [AdminRelay]) and value types. Context
// encoding lives in session/, PIN hashing in password/, step-up token
// issuance in jwt/, and shared helpers under internal/.
//
// # What this package must NOT do
//
//   - Render HTML or hold presentation state; screens are named, never drawn.
//   - Persist registration records itself; every record write is one atomic
//     [UserRepository] call.
//   - Let a recoverable failure cross the host boundary as an error; only
//     terminal locks and truly unexpected failures surface, and then only
//     as the opaque [ErrAuthentication].
package adfsmfa
