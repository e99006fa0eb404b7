package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
)

// RegisterModule inserts a module and returns its generated id.
func (l *Ledger) RegisterModule(ctx context.Context, name string, status domain.ModuleStatus) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrInvalidName
	}

	if !status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var id int64

	err := l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO modules(name, status, last_updated_ms)
VALUES (?, ?, ?);
`, name, string(status), l.nowMillis())
		if err != nil {
			return fmt.Errorf("insert module: %w", err)
		}

		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("module id: %w", err)
		}

		return nil
	})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to register module", "name", name, "error", err)
		return 0, fmt.Errorf("register module: %w", err)
	}

	logger.InfoKV(ctx, "Module registered", "module_id", id, "name", name, "status", status)

	return id, nil
}

// UpdateModuleStatus sets the status of a module and refreshes last_updated.
// It reports false when no module has the given id.
func (l *Ledger) UpdateModuleStatus(ctx context.Context, id int64, status domain.ModuleStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var updated bool

	err := l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error

		updated, err = updateStatus(ctx, tx, id, status, l.nowMillis())

		return err
	})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to update module status", "module_id", id, "error", err)
		return false, fmt.Errorf("update module status: %w", err)
	}

	if updated {
		logger.InfoKV(ctx, "Module status updated", "module_id", id, "status", status)
	}

	return updated, nil
}

// UnregisterModule removes a module. The lookup and the delete share one
// transaction, so a failed delete leaves the module untouched.
// It reports false when no module has the given id.
func (l *Ledger) UnregisterModule(ctx context.Context, id int64) (bool, error) {
	var name string

	err := l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT name FROM modules WHERE id = ?;`, id).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrModuleNotFound
		}

		if err != nil {
			return fmt.Errorf("lookup module: %w", err)
		}

		if _, err = tx.ExecContext(ctx, `DELETE FROM modules WHERE id = ?;`, id); err != nil {
			return fmt.Errorf("delete module: %w", err)
		}

		return nil
	})

	switch {
	case errors.Is(err, ErrModuleNotFound):
		logger.WarnKV(ctx, "No module to remove", "module_id", id)
		return false, nil
	case err != nil:
		logger.ErrorKV(ctx, "Failed to unregister module", "module_id", id, "error", err)
		return false, fmt.Errorf("unregister module: %w", err)
	}

	logger.InfoKV(ctx, "Module removed", "module_id", id, "name", name)

	return true, nil
}

// GetAllModules returns every module ordered by name. An empty ledger
// yields an empty, non-nil slice.
func (l *Ledger) GetAllModules(ctx context.Context) ([]domain.Module, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, name, status, last_updated_ms
FROM modules
ORDER BY name ASC, id ASC;
`)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to list modules", "error", err)
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	modules := make([]domain.Module, 0)

	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}

		modules = append(modules, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}

	return modules, nil
}

// GetModule returns one module or ErrModuleNotFound.
func (l *Ledger) GetModule(ctx context.Context, id int64) (*domain.Module, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT id, name, status, last_updated_ms
FROM modules
WHERE id = ?;
`, id)

	m, err := scanModule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModuleNotFound
	}

	if err != nil {
		return nil, err
	}

	return &m, nil
}

// updateStatus must run inside a writer transaction.
func updateStatus(ctx context.Context, tx *sql.Tx, id int64, status domain.ModuleStatus, nowMs int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
UPDATE modules
SET status = ?,
    last_updated_ms = ?
WHERE id = ?;
`, string(status), nowMs, id)
	if err != nil {
		return false, fmt.Errorf("update module %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update module %d rows: %w", id, err)
	}

	return n > 0, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanModule(s scanner) (domain.Module, error) {
	var (
		m         domain.Module
		status    string
		updatedMs int64
	)

	if err := s.Scan(&m.ID, &m.Name, &status, &updatedMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, err
		}

		return m, fmt.Errorf("scan module: %w", err)
	}

	m.Status = domain.ModuleStatus(status)
	m.LastUpdated = fromMillis(updatedMs)

	return m, nil
}
