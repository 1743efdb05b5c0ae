// Package permission provides the 64-bit capability mask used by authcore
// authorization checks, the catalog of named capabilities, and named
// aggregate roles.
//
// # Mask layout
//
// Each primitive capability owns one bit; bit positions are stable because
// masks are persisted with principals and embedded in issued access tokens.
// Aggregates such as [BasicUser] and [Administrator] are plain unions and are
// never reported by [NamesOf], which lists primitive names in ascending bit
// order.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, jwt, or any store package.
//   - Reorder or reuse existing bit positions.
package permission
