// Package blacklist stores identifiers of access tokens revoked before their
// natural expiry. An entry never outlives the token it blocks.
package blacklist
