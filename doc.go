// Package authcore is an authentication and token-lifecycle engine: credential
// verification, HS256 access tokens, rotating opaque refresh tokens with an
// active-token cap, access-token blacklisting, session tracking and a 64-bit
// capability mask.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Request context
//
// Every operation takes an explicit [RequestContext] (client IP, user agent,
// presented bearer token, device info). Nothing is read from ambient request
// state.
//
// # Revocation model
//
// Access tokens are stateless and carry a snapshot of the principal's token
// version. [Engine.Revoke] and [Engine.Refresh] blacklist only the presented
// access token; [Engine.RevokeAll] bumps the token version, which rejects
// every earlier access token of the principal in [Engine.Validate].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config] and
// value types. Orchestration lives in internal/flows; storage lives in the
// refresh, blacklist, session and principal packages.
//
// # What this package must NOT do
//
//   - Persist access tokens or refresh token values in plaintext.
//   - Log secrets or token values.
//   - Import any sub-package that re-imports authcore.
package authcore
