package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	dbpkg "github.com/sgonzalezm/AlarmMgmt/internal/db"
)

var (
	// ErrModuleNotFound is returned when an operation targets a missing module.
	ErrModuleNotFound = errors.New("module not found")
	// ErrInvalidName is returned for an empty module name.
	ErrInvalidName = errors.New("module name must be provided")
	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid module status")
	// ErrInvalidAlarmType is returned for an empty alarm type.
	ErrInvalidAlarmType = errors.New("alarm type must be provided")
	// ErrInvalidUsername is returned for an empty username.
	ErrInvalidUsername = errors.New("username must be provided")
	// ErrInvalidCredential is returned for an empty or oversized credential.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrInvalidRole is returned for a role outside the known set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrDuplicateUsername is returned when the username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrAuthenticationFailed is returned for any failed credential check,
	// whether the username is unknown or the credential is wrong.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Ledger persists modules, alarm events and users in SQLite.
type Ledger struct {
	// db serves reads.
	db *sql.DB
	// writer serialises every mutation into its own transaction.
	writer *dbpkg.Worker
	// hashCost is the bcrypt cost for stored credentials.
	hashCost int
	// now returns the current time, overridable in tests.
	now func() time.Time
	// dummyHash is compared against when a username is unknown.
	dummyHash []byte
	dummyOnce sync.Once
	// owned is set when Close must also release db.
	owned bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithHashCost overrides the bcrypt cost used for new credentials.
func WithHashCost(cost int) Option {
	return func(l *Ledger) {
		l.hashCost = cost
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New builds a Ledger over an already migrated database and writer.
// The caller keeps ownership of both.
func New(db *sql.DB, writer *dbpkg.Worker, opts ...Option) *Ledger {
	l := &Ledger{
		db:       db,
		writer:   writer,
		hashCost: defaultHashCost,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Open opens the database at path, applies migrations and starts the
// writer. A failure here is a storage fault that must abort startup.
func Open(ctx context.Context, path string, opts ...Option) (*Ledger, error) {
	db, err := dbpkg.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	l := New(db, dbpkg.NewWorker(db), opts...)
	l.owned = true

	return l, nil
}

// Close stops the writer and, for ledgers built by Open, closes the database.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}

	if l.writer != nil {
		l.writer.Close()
	}

	if l.owned && l.db != nil {
		return l.db.Close()
	}

	return nil
}

func (l *Ledger) nowMillis() int64 {
	return l.now().UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}

	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
