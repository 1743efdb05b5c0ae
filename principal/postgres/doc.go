// Package postgres implements principal.Store on PostgreSQL using the pgx
// database/sql driver. Username and email are unique as stored and matched
// exactly, so "Alice" and "alice" are distinct principals.
package postgres
