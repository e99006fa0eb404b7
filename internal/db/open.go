// Package db opens the controller's SQLite database, applies the embedded
// schema migrations and serialises write transactions through a Worker.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database, mostly for tests.
const MemoryPath = ":memory:"

// pingTimeout bounds the connectivity check performed by Open.
const pingTimeout = 3 * time.Second

var errPathRequired = errors.New("database path must be provided")

// Open connects to the SQLite database at path and applies migrations.
// Any failure here is a storage fault the caller must treat as fatal.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errPathRequired
	}

	dsn := MemoryPath

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}

		// WAL with synchronous NORMAL keeps commits durable across crashes
		// of the process; busy_timeout absorbs short external locks.
		dsn = fmt.Sprintf(
			"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
			filepath.Clean(path),
		)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// One connection: every reader and the single writer share it, which
	// also keeps an in-memory database alive for the handle's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err = Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
