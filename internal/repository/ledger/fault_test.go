package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	dbpkg "github.com/sgonzalezm/AlarmMgmt/internal/db"
)

var errDiskFull = errors.New("disk I/O error")

func setupMockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock, *dbpkg.Worker) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	writer := dbpkg.NewWorker(db)

	t.Cleanup(func() {
		writer.Close()
		_ = db.Close()
	})

	return New(db, writer), mock, writer
}

// TestUnregisterModule_RollsBackOnDeleteFailure surfaces the fault and keeps the module.
func TestUnregisterModule_RollsBackOnDeleteFailure(t *testing.T) {
	t.Parallel()

	l, mock, writer := setupMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name FROM modules").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Door"))
	mock.ExpectExec("DELETE FROM modules").
		WithArgs(int64(7)).
		WillReturnError(errDiskFull)
	mock.ExpectRollback()

	ok, err := l.UnregisterModule(context.Background(), 7)
	require.ErrorIs(t, err, errDiskFull)
	require.False(t, ok)

	writer.Close()
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestTriggerAlarm_RollsBackWhenStatusUpdateFails keeps the event and status change together.
func TestTriggerAlarm_RollsBackWhenStatusUpdateFails(t *testing.T) {
	t.Parallel()

	l, mock, writer := setupMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM modules").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("INSERT INTO alarm_events").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("UPDATE modules").
		WillReturnError(errDiskFull)
	mock.ExpectRollback()

	id, err := l.TriggerAlarm(context.Background(), 3, "intrusion", "")
	require.ErrorIs(t, err, errDiskFull)
	require.Zero(t, id)

	writer.Close()
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetAllModules_StorageFault wraps the driver error.
func TestGetAllModules_StorageFault(t *testing.T) {
	t.Parallel()

	l, mock, _ := setupMockLedger(t)

	mock.ExpectQuery("SELECT id, name, status, last_updated_ms").
		WillReturnError(errDiskFull)

	modules, err := l.GetAllModules(context.Background())
	require.ErrorIs(t, err, errDiskFull)
	require.Nil(t, modules)
	require.NoError(t, mock.ExpectationsWereMet())
}
