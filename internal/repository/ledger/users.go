package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
)

// defaultHashCost is the bcrypt cost for stored credentials.
const defaultHashCost = bcrypt.DefaultCost

// InsertUser creates a user with a bcrypt-hashed credential and returns its id.
// A taken username yields ErrDuplicateUsername and leaves the ledger unchanged.
func (l *Ledger) InsertUser(ctx context.Context, username, credential string, role domain.Role) (int64, error) {
	return l.insertUser(ctx, username, credential, role, false)
}

// EnsureBootstrapAdmin creates the first administrator when no users exist.
// The account is flagged so its credential must be changed at first login.
// It reports whether an account was created.
func (l *Ledger) EnsureBootstrapAdmin(ctx context.Context, username, credential string) (bool, error) {
	var count int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users;`).Scan(&count); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}

	if count > 0 {
		return false, nil
	}

	hash, err := l.hash(credential)
	if err != nil {
		return false, err
	}

	created := false

	err = l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Re-check inside the transaction in case a user appeared meanwhile.
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users;`).Scan(&count); err != nil {
			return fmt.Errorf("count users: %w", err)
		}

		if count > 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO users(username, credential_hash, role, created_at_ms, must_change_credential)
VALUES (?, ?, ?, ?, 1);
`, username, string(hash), string(domain.RoleAdministrator), l.nowMillis()); err != nil {
			return fmt.Errorf("insert bootstrap admin: %w", err)
		}

		created = true

		return nil
	})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to create bootstrap administrator", "error", err)
		return false, err
	}

	if created {
		logger.WarnKV(ctx, "Bootstrap administrator created, change its credential at first login", "username", username)
	}

	return created, nil
}

// AuthenticateUser checks a credential and returns the matching user.
// Unknown usernames and wrong credentials both yield ErrAuthenticationFailed.
func (l *Ledger) AuthenticateUser(ctx context.Context, username, credential string) (*domain.User, error) {
	user, hash, err := l.lookupUser(ctx, username)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Burn the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(l.dummy(), []byte(credential))

		logger.WarnKV(ctx, "Failed authentication attempt", "username", username)

		return nil, ErrAuthenticationFailed
	case err != nil:
		logger.ErrorKV(ctx, "Authentication lookup failed", "username", username, "error", err)
		return nil, fmt.Errorf("authenticate user: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword(hash, []byte(credential)); err != nil {
		logger.WarnKV(ctx, "Failed authentication attempt", "username", username)
		return nil, ErrAuthenticationFailed
	}

	logger.InfoKV(ctx, "User authenticated", "username", username, "role", user.Role)

	return user, nil
}

// ChangeCredential replaces the credential of username after verifying the
// current one, and clears the must-change flag.
func (l *Ledger) ChangeCredential(ctx context.Context, username, current, next string) error {
	if _, err := l.AuthenticateUser(ctx, username, current); err != nil {
		return err
	}

	hash, err := l.hash(next)
	if err != nil {
		return err
	}

	err = l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE users
SET credential_hash = ?,
    must_change_credential = 0
WHERE username = ?;
`, string(hash), username)
		if err != nil {
			return fmt.Errorf("update credential: %w", err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			return ErrAuthenticationFailed
		}

		return nil
	})
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Credential changed", "username", username)

	return nil
}

func (l *Ledger) insertUser(
	ctx context.Context,
	username, credential string,
	role domain.Role,
	mustChange bool,
) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, ErrInvalidUsername
	}

	role, ok := domain.ParseRole(string(role))
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	hash, err := l.hash(credential)
	if err != nil {
		return 0, err
	}

	var id int64

	err = l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO users(username, credential_hash, role, created_at_ms, must_change_credential)
VALUES (?, ?, ?, ?, ?);
`, username, string(hash), string(role), l.nowMillis(), boolToInt(mustChange))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateUsername
			}

			return fmt.Errorf("insert user: %w", err)
		}

		id, err = res.LastInsertId()

		return err
	})

	switch {
	case errors.Is(err, ErrDuplicateUsername):
		logger.WarnKV(ctx, "Username already exists", "username", username)
		return 0, ErrDuplicateUsername
	case err != nil:
		logger.ErrorKV(ctx, "Failed to insert user", "username", username, "error", err)
		return 0, fmt.Errorf("insert user: %w", err)
	}

	logger.InfoKV(ctx, "User created", "user_id", id, "username", username, "role", role)

	return id, nil
}

func (l *Ledger) lookupUser(ctx context.Context, username string) (*domain.User, []byte, error) {
	var (
		user       domain.User
		hash       string
		role       string
		createdMs  int64
		mustChange int
	)

	err := l.db.QueryRowContext(ctx, `
SELECT id, username, credential_hash, role, created_at_ms, must_change_credential
FROM users
WHERE username = ?;
`, username).Scan(&user.ID, &user.Username, &hash, &role, &createdMs, &mustChange)
	if err != nil {
		return nil, nil, err
	}

	user.Role = domain.Role(role)
	user.CreatedAt = fromMillis(createdMs)
	user.MustChangeCredential = mustChange == 1

	return &user, []byte(hash), nil
}

func (l *Ledger) hash(credential string) ([]byte, error) {
	if credential == "" {
		return nil, ErrInvalidCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), l.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: longer than 72 bytes", ErrInvalidCredential)
	}

	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	return hash, nil
}

func (l *Ledger) dummy() []byte {
	l.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-credential"), l.hashCost)
		if err == nil {
			l.dummyHash = hash
		}
	})

	return l.dummyHash
}
