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

// defaultHistoryLimit caps GetAlarmHistory when no positive limit is given.
const defaultHistoryLimit = 100

// TriggerAlarm records an alarm event for moduleID and moves the module to
// the alarm status. Both writes commit together or not at all; a missing
// module yields ErrModuleNotFound and no event.
func (l *Ledger) TriggerAlarm(ctx context.Context, moduleID int64, alarmType, description string) (int64, error) {
	alarmType = strings.TrimSpace(alarmType)
	if alarmType == "" {
		return 0, ErrInvalidAlarmType
	}

	var alarmID int64

	err := l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int

		err := tx.QueryRowContext(ctx, `SELECT 1 FROM modules WHERE id = ?;`, moduleID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrModuleNotFound
		}

		if err != nil {
			return fmt.Errorf("resolve module: %w", err)
		}

		nowMs := l.nowMillis()

		res, err := tx.ExecContext(ctx, `
INSERT INTO alarm_events(module_id, alarm_type, description, timestamp_ms, acknowledged)
VALUES (?, ?, ?, ?, 0);
`, moduleID, alarmType, description, nowMs)
		if err != nil {
			return fmt.Errorf("insert alarm event: %w", err)
		}

		if alarmID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("alarm event id: %w", err)
		}

		if _, err = updateStatus(ctx, tx, moduleID, domain.ModuleAlarm, nowMs); err != nil {
			return err
		}

		return nil
	})

	switch {
	case errors.Is(err, ErrModuleNotFound):
		logger.WarnKV(ctx, "Alarm for unknown module ignored", "module_id", moduleID, "alarm_type", alarmType)
		return 0, ErrModuleNotFound
	case err != nil:
		logger.ErrorKV(ctx, "Failed to trigger alarm", "module_id", moduleID, "alarm_type", alarmType, "error", err)
		return 0, fmt.Errorf("trigger alarm: %w", err)
	}

	logger.WarnKV(ctx, "Alarm triggered", "alarm_id", alarmID, "module_id", moduleID, "alarm_type", alarmType)

	return alarmID, nil
}

// AcknowledgeAlarm flips the acknowledged flag of an unacknowledged event.
// It reports false when the id is unknown or was already acknowledged.
func (l *Ledger) AcknowledgeAlarm(ctx context.Context, id int64) (bool, error) {
	var acknowledged bool

	err := l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE alarm_events
SET acknowledged = 1
WHERE id = ? AND acknowledged = 0;
`, id)
		if err != nil {
			return fmt.Errorf("acknowledge alarm %d: %w", id, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("acknowledge alarm %d rows: %w", id, err)
		}

		acknowledged = n > 0

		return nil
	})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to acknowledge alarm", "alarm_id", id, "error", err)
		return false, err
	}

	if acknowledged {
		logger.InfoKV(ctx, "Alarm acknowledged", "alarm_id", id)
	}

	return acknowledged, nil
}

// GetActiveAlarms returns the unacknowledged events, newest first, each
// with the name of the module it was raised for.
func (l *Ledger) GetActiveAlarms(ctx context.Context) ([]domain.ActiveAlarm, error) {
	alarms, err := l.queryAlarms(ctx, `
SELECT a.id, a.module_id, a.alarm_type, a.description, a.timestamp_ms, a.acknowledged,
       COALESCE(m.name, '')
FROM alarm_events a
LEFT JOIN modules m ON m.id = a.module_id
WHERE a.acknowledged = 0
ORDER BY a.timestamp_ms DESC, a.id DESC;
`)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to list active alarms", "error", err)
		return nil, fmt.Errorf("list active alarms: %w", err)
	}

	return alarms, nil
}

// GetAlarmHistory returns the latest events regardless of acknowledgment.
func (l *Ledger) GetAlarmHistory(ctx context.Context, limit int) ([]domain.ActiveAlarm, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	alarms, err := l.queryAlarms(ctx, `
SELECT a.id, a.module_id, a.alarm_type, a.description, a.timestamp_ms, a.acknowledged,
       COALESCE(m.name, '')
FROM alarm_events a
LEFT JOIN modules m ON m.id = a.module_id
ORDER BY a.timestamp_ms DESC, a.id DESC
LIMIT ?;
`, limit)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to list alarm history", "error", err)
		return nil, fmt.Errorf("list alarm history: %w", err)
	}

	return alarms, nil
}

func (l *Ledger) queryAlarms(ctx context.Context, query string, args ...any) ([]domain.ActiveAlarm, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alarms := make([]domain.ActiveAlarm, 0)

	for rows.Next() {
		var (
			a            domain.ActiveAlarm
			timestampMs  int64
			acknowledged int
		)

		if err = rows.Scan(
			&a.ID, &a.ModuleID, &a.AlarmType, &a.Description, &timestampMs, &acknowledged, &a.ModuleName,
		); err != nil {
			return nil, fmt.Errorf("scan alarm event: %w", err)
		}

		a.Timestamp = fromMillis(timestampMs)
		a.Acknowledged = acknowledged == 1

		alarms = append(alarms, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarm events: %w", err)
	}

	return alarms, nil
}
