// ABOUTME: SQLite store variant backed by the cgo mattn/go-sqlite3 driver
// ABOUTME: Selected with database.driver: sqlite3 when the system SQLite is preferred

package store

import (
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite3Store creates a SQLite store at path using the cgo driver.
// Behavior and schema are identical to NewSQLiteStore.
func NewSQLite3Store(path string) (*SQLStore, error) {
	return openSQLite(DriverSQLite3, path)
}
