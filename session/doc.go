// Package session tracks login sessions in Redis.
//
// A session is created on every successful login, external login, registration
// or refresh rotation, and is deactivated on logout, rotation or revoke-all.
// Inactive sessions are kept until [Store.SweepInactive] removes them by
// last-access age.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Record] model. It does NOT interpret
// access tokens, evaluate permissions, or decide when a session should end.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or permission.
//   - Store refresh tokens or access tokens in [Record] fields.
package session
