// Package principal defines the authenticatable account model, the [Store]
// contract used by authcore, and an in-memory implementation.
//
// A SQL-backed store lives in the postgres subpackage. Principals are never
// hard-deleted; deactivation is the only removal path.
package principal
