// Package app wires the authcore process: environment configuration,
// logging, Redis and Postgres connections, the engine and its HTTP surface.
// It is used only by cmd/authcore.
package app
