// Package flows contains the orchestration behind every Engine operation.
//
// Each Run function (RunLogin, RunRefresh, RunValidate, ...) accepts a typed
// dependency struct and returns a result carrying a [FailureKind] instead of
// a public error. The root package maps kinds to its sentinel errors, metrics
// and audit events, which keeps the Engine type thin.
//
// # Architecture boundaries
//
// Flows coordinate the principal store, credential verifier, token codec and
// the refresh, blacklist and session stores. They do NOT own any of them.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore.
//   - Log token values or secrets.
package flows
