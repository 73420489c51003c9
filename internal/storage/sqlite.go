// Package storage provides SQLite database connectivity and data access.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// sqlitePragmas are applied to every pooled connection through the DSN.
// Participant rows cascade with their event, and WAL lets calendar loads
// read while an import batch is being written.
var sqlitePragmas = url.Values{
	"_foreign_keys": {"on"},
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"5000"},
	"_synchronous":  {"NORMAL"},
	"_txlock":       {"immediate"},
	"cache":         {"private"},
}

// DB wraps the SQL database connection with application-specific methods.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens the calendar database at path, creating its directory first.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?"+sqlitePragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// One writer at a time under WAL; a few readers serve concurrent loads.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	return &DB{DB: db, path: path}, nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// SchemaVersion returns the name of the newest applied migration, or "" when
// none has run.
func (db *DB) SchemaVersion(ctx context.Context) (string, error) {
	var name sql.NullString
	err := db.QueryRowContext(ctx, "SELECT MAX(name) FROM _migrations").Scan(&name)
	if err != nil {
		return "", fmt.Errorf("reading schema version: %w", err)
	}
	return name.String, nil
}

// Transaction runs fn inside a transaction bound to ctx. The transaction is
// rolled back when fn fails and committed otherwise.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
