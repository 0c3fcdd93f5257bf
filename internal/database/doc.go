// Package database provides connection pool management for PostgreSQL.
// The gateway uses a single pool for the chat message archive.
package database
