// Package stores provides the persistence layer for redeploy.
// It includes SQLite-based storage with WAL mode, connection pooling,
// serialized deployment session snapshots, and an append-only session
// event log.
package stores
