// Package archive persists chat envelopes to PostgreSQL in batches.
// Delivery never waits on the database: envelopes are queued through a
// buffered channel and dropped with a log line when the buffer is full.
package archive
