// Package audit keeps the append-only record of shouts sent and favorites
// cleared, as CSV files, a SQLite database, or both.
package audit
