// Package internal contains helpers private to authcore: opaque token
// generation, token hashing and session id minting.
//
// Sub-packages:
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: orchestration behind every Engine operation
//   - rate: Redis-backed login throttle
//   - app: process wiring for cmd/authcore
package internal
