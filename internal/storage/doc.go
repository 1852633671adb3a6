// Package storage persists detected openings.
//
// Drivers:
//   - "file": append-only text log, one line per detection (default)
//   - "sqlite": SQLite database file (modernc.org/sqlite, pure Go)
//   - "postgres": PostgreSQL via a pgx connection pool
//   - "none": openings are only logged
package storage
