// Package jwt issues and verifies HS256 access tokens and mints opaque
// refresh token values.
//
// Access tokens carry the principal id (sub), a unique id (jti), the
// permission mask, token version and auth type as of issuance. Verification
// is purely local; revocation checks belong to the caller.
//
// [Manager.ExtractID] and [Manager.ExtractExpiry] read claims without
// verification so that a token can be blacklisted after its business checks
// fail. They return false on structurally malformed input.
package jwt
