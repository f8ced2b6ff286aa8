// Package storage implements the embedded SQL persistence layer (§4.6):
// schema setup with version-gated recreate, event/snapshot CRUD satisfying
// engine.TrackerStore, forensic capture storage, machine snapshots, and
// age-based pruning.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps the single writer connection to the embedded database.
type DB struct {
	conn *sqlx.DB
	path string
}

// Open opens (creating if necessary) the database at dbPath. If the
// on-disk schema_version does not match the compiled schemaVersion, the
// database file and its WAL/SHM sidecars are deleted and the schema is
// recreated from scratch — there are no migrations (§4.6).
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	conn, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := applyPragmas(conn); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, path: dbPath}

	onDiskVersion, err := db.readSchemaVersion()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if onDiskVersion != schemaVersion {
		conn.Close()
		if err := removeDBFiles(dbPath); err != nil {
			return nil, fmt.Errorf("storage: remove stale db: %w", err)
		}
		conn, err = sqlx.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("storage: reopen: %w", err)
		}
		conn.SetMaxOpenConns(1)
		if err := applyPragmas(conn); err != nil {
			conn.Close()
			return nil, err
		}
		db.conn = conn
		if err := db.createSchema(); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return db, nil
}

func applyPragmas(conn *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			return fmt.Errorf("storage: pragma %q: %w", p, err)
		}
	}
	return nil
}

func (db *DB) readSchemaVersion() (int, error) {
	var exists int
	err := db.conn.Get(&exists, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='daemon_state'")
	if err != nil {
		return 0, fmt.Errorf("storage: check schema table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var value string
	err = db.conn.Get(&value, "SELECT value FROM daemon_state WHERE key='schema_version'")
	if err != nil {
		return 0, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, nil
	}
	return v, nil
}

func (db *DB) createSchema() error {
	if _, err := db.conn.Exec(schemaSQL); err != nil {
		return fmt.Errorf("storage: create schema: %w", err)
	}
	_, err := db.conn.Exec(
		"INSERT INTO daemon_state(key, value, updated_at) VALUES ('schema_version', ?, ?)",
		strconv.Itoa(schemaVersion), nowSeconds(),
	)
	if err != nil {
		return fmt.Errorf("storage: record schema version: %w", err)
	}
	return nil
}

func removeDBFiles(dbPath string) error {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Size returns the on-disk size of the primary database file in bytes,
// used for heartbeat logging (§4.8 step 5). Returns 0 on any error.
func (db *DB) Size() int64 {
	info, err := os.Stat(db.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
