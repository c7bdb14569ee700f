// Package sigdb caches significators extracted from template documents in
// a SQLite database, keyed by file path and modification time.
package sigdb

import (
	"database/sql"
	"fmt"
	"sync"
)

// Current schema version
const SchemaVersion = "1"

// DB is a SQLite-backed significator cache.
type DB struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates a significator cache at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}

	// Create tables if not exists
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			mtime INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS significators (
			path TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (path, key)
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	d := &DB{db: db}

	// Check/set schema version (use unlocked versions since we're in init)
	version, err := d.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}
	switch version {
	case "":
		if err := d.setMetadataUnlocked("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}

	return d, nil
}

// Lookup returns the cached significators for path. It returns nil when the
// path is absent from the cache or was recorded with a different mtime; a
// fresh entry with no significators yields an empty non-nil map.
func (d *DB) Lookup(path string, mtime int64) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var recorded int64
	err := d.db.QueryRow("SELECT mtime FROM files WHERE path = ?", path).Scan(&recorded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if recorded != mtime {
		return nil, nil
	}

	rows, err := d.db.Query("SELECT key, value FROM significators WHERE path = ?", path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sigs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		sigs[key] = value
	}
	return sigs, rows.Err()
}

// Store replaces the cached significators for path in one transaction.
func (d *DB) Store(path string, mtime int64, sigs map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO files (path, mtime) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime
	`, path, mtime)
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM significators WHERE path = ?", path); err != nil {
		return err
	}
	for key, value := range sigs {
		_, err := tx.Exec(
			"INSERT INTO significators (path, key, value) VALUES (?, ?, ?)",
			path, key, value,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (d *DB) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (d *DB) setMetadataUnlocked(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
