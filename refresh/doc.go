// Package refresh persists opaque refresh token records in Redis.
//
// Tokens are stored only as sha256 hashes. Revocation is a one-way
// conditional update executed in Lua, so two concurrent rotations of the same
// token produce exactly one winner. Insert enforces the per-principal active
// limit in the same script that writes the new record.
//
// # What this package must NOT do
//
//   - Persist plaintext token values.
//   - Issue or interpret access tokens.
//   - Import authcore or any flow package.
package refresh
