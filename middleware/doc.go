// Package middleware exposes HTTP adapters over authcore.Engine validation.
//
// # Guards
//
//   - [Guard] validates the bearer access token and stores the result.
//   - [RequireCapability] gates a handler on the token's permission snapshot.
//
// Rejections are 401 for a missing or invalid token, 403 for a missing
// capability and 503 when validation could not reach its stores.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every
// authentication decision is delegated to Engine.Validate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis.
//   - Re-read principals; capability checks use the token snapshot.
package middleware
