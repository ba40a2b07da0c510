// Package stores provides persistence layer implementations for Vaultbuild.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for wizard sessions, build records and build events.
package stores
