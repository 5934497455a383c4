package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

// pragmas applied to every writer connection. A single open connection
// (SetMaxOpenConns(1)) avoids SQLITE_BUSY under WAL with one writer per
// database file; reads go through the same handle, and no separate
// read-only handle is opened.
var writerPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA cache_size = -65536",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA foreign_keys = ON",
}

// validateSQLiteIntegrity runs PRAGMA integrity_check against an existing
// database file before it is opened for writing. A missing file is not an
// error — it means a fresh store.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for integrity check: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return codelenserrors.New(codelenserrors.ErrCodeStoreCorrupt,
			fmt.Sprintf("sqlite integrity check failed for %s: %s", path, result), nil)
	}
	return nil
}

// OpenSQLiteWriter opens (and, if needed, creates) a single-writer SQLite
// connection at path, validating integrity first. schema is executed once
// to create any missing tables. Exported so internal/cache's L3 tier and
// query log can share the same connection-setup idiom for their own
// SQLite files.
func OpenSQLiteWriter(path, schema string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		if err := validateSQLiteIntegrity(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range writerPragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if schema != "" {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return db, nil
}
