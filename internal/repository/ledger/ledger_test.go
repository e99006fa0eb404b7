package ledger

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/sgonzalezm/AlarmMgmt/internal/domain/alarm"
)

// steppingClock advances one second per call so event order is deterministic.
func steppingClock() func() time.Time {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var ticks atomic.Int64

	return func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
}

func openLedger(t *testing.T, path string) *Ledger {
	t.Helper()

	l, err := Open(context.Background(), path, WithHashCost(bcrypt.MinCost), WithClock(steppingClock()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = l.Close()
	})

	return l
}

func newLedger(t *testing.T) *Ledger {
	t.Helper()

	return openLedger(t, filepath.Join(t.TempDir(), "alarm.db"))
}

// TestLedger_DoorScenario walks a module from registration through alarm and acknowledgment.
func TestLedger_DoorScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	id, err := l.RegisterModule(ctx, "Door", domain.ModuleActive)
	require.NoError(t, err)
	require.Positive(t, id)

	alarmID, err := l.TriggerAlarm(ctx, id, "intrusion", "front door opened")
	require.NoError(t, err)
	require.Positive(t, alarmID)

	m, err := l.GetModule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.ModuleAlarm, m.Status)

	active, err := l.GetActiveAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, alarmID, active[0].ID)
	require.Equal(t, id, active[0].ModuleID)
	require.Equal(t, "Door", active[0].ModuleName)
	require.Equal(t, "intrusion", active[0].AlarmType)
	require.Equal(t, "front door opened", active[0].Description)
	require.False(t, active[0].Acknowledged)

	ok, err := l.AcknowledgeAlarm(ctx, alarmID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.AcknowledgeAlarm(ctx, alarmID)
	require.NoError(t, err)
	require.False(t, ok, "second acknowledgment must be a no-op")

	active, err = l.GetActiveAlarms(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	history, err := l.GetAlarmHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].Acknowledged)
}

// TestLedger_ActiveAlarmsJoinOnModuleID makes sure the name comes from the alarm's module.
func TestLedger_ActiveAlarmsJoinOnModuleID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	_, err := l.RegisterModule(ctx, "Kitchen window", domain.ModuleActive)
	require.NoError(t, err)

	garageID, err := l.RegisterModule(ctx, "Garage", domain.ModuleActive)
	require.NoError(t, err)

	_, err = l.TriggerAlarm(ctx, garageID, "intrusion", "")
	require.NoError(t, err)

	active, err := l.GetActiveAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Garage", active[0].ModuleName)
}

// TestLedger_ActiveAlarmsNewestFirst checks ordering by timestamp descending.
func TestLedger_ActiveAlarmsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	id, err := l.RegisterModule(ctx, "Hall", domain.ModuleActive)
	require.NoError(t, err)

	first, err := l.TriggerAlarm(ctx, id, "intrusion", "")
	require.NoError(t, err)

	second, err := l.TriggerAlarm(ctx, id, "tamper", "")
	require.NoError(t, err)

	active, err := l.GetActiveAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, second, active[0].ID)
	require.Equal(t, first, active[1].ID)
	require.True(t, active[0].Timestamp.After(active[1].Timestamp))

	history, err := l.GetAlarmHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, second, history[0].ID)
}

// TestLedger_TriggerAlarmUnknownModule leaves no orphan event behind.
func TestLedger_TriggerAlarmUnknownModule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	_, err := l.TriggerAlarm(ctx, 42, "intrusion", "")
	require.ErrorIs(t, err, ErrModuleNotFound)

	history, err := l.GetAlarmHistory(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, history)

	_, err = l.TriggerAlarm(ctx, 42, "  ", "")
	require.ErrorIs(t, err, ErrInvalidAlarmType)
}

// TestLedger_UpdateModuleStatus covers known and unknown ids.
func TestLedger_UpdateModuleStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	id, err := l.RegisterModule(ctx, "Porch", domain.ModuleInactive)
	require.NoError(t, err)

	before, err := l.GetModule(ctx, id)
	require.NoError(t, err)

	ok, err := l.UpdateModuleStatus(ctx, id, domain.ModuleMaintenance)
	require.NoError(t, err)
	require.True(t, ok)

	after, err := l.GetModule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.ModuleMaintenance, after.Status)
	require.True(t, after.LastUpdated.After(before.LastUpdated))

	ok, err = l.UpdateModuleStatus(ctx, id+100, domain.ModuleActive)
	require.NoError(t, err)
	require.False(t, ok)

	modules, err := l.GetAllModules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 1)
	require.Equal(t, domain.ModuleMaintenance, modules[0].Status)

	_, err = l.UpdateModuleStatus(ctx, id, domain.ModuleStatus("armed"))
	require.ErrorIs(t, err, ErrInvalidStatus)
}

// TestLedger_RegisterModuleValidation rejects empty names and unknown statuses.
func TestLedger_RegisterModuleValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	_, err := l.RegisterModule(ctx, "   ", domain.ModuleActive)
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = l.RegisterModule(ctx, "Door", domain.ModuleStatus("bogus"))
	require.ErrorIs(t, err, ErrInvalidStatus)

	modules, err := l.GetAllModules(ctx)
	require.NoError(t, err)
	require.NotNil(t, modules)
	require.Empty(t, modules)
}

// TestLedger_UnregisterModule keeps alarm history for removed modules.
func TestLedger_UnregisterModule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	id, err := l.RegisterModule(ctx, "Shed", domain.ModuleActive)
	require.NoError(t, err)

	_, err = l.TriggerAlarm(ctx, id, "intrusion", "")
	require.NoError(t, err)

	ok, err := l.UnregisterModule(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.UnregisterModule(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = l.GetModule(ctx, id)
	require.ErrorIs(t, err, ErrModuleNotFound)

	active, err := l.GetActiveAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Empty(t, active[0].ModuleName)
}

// TestLedger_GetAllModulesOrdered sorts by name.
func TestLedger_GetAllModulesOrdered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	for _, name := range []string{"Window", "Attic", "Door"} {
		_, err := l.RegisterModule(ctx, name, domain.ModuleActive)
		require.NoError(t, err)
	}

	modules, err := l.GetAllModules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 3)
	require.Equal(t, "Attic", modules[0].Name)
	require.Equal(t, "Door", modules[1].Name)
	require.Equal(t, "Window", modules[2].Name)
}

// TestLedger_RegisterModuleSameName allows repeated names with distinct ids.
func TestLedger_RegisterModuleSameName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	first, err := l.RegisterModule(ctx, "Door", domain.ModuleActive)
	require.NoError(t, err)

	second, err := l.RegisterModule(ctx, "Door", domain.ModuleInactive)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	modules, err := l.GetAllModules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	require.Equal(t, first, modules[0].ID)
	require.Equal(t, second, modules[1].ID)
	require.Equal(t, "Door", modules[1].Name)
	require.Equal(t, domain.ModuleInactive, modules[1].Status)
}

// TestLedger_SurvivesReopen confirms committed writes are durable.
func TestLedger_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alarm.db")

	l, err := Open(ctx, path, WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)

	id, err := l.RegisterModule(ctx, "Door", domain.ModuleActive)
	require.NoError(t, err)

	_, err = l.TriggerAlarm(ctx, id, "intrusion", "")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened := openLedger(t, path)

	m, err := reopened.GetModule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Door", m.Name)
	require.Equal(t, domain.ModuleAlarm, m.Status)

	active, err := reopened.GetActiveAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

// TestLedger_Users covers creation, duplicates and authentication.
func TestLedger_Users(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	id, err := l.InsertUser(ctx, "alice", "s3cret", domain.RoleOperator)
	require.NoError(t, err)
	require.Positive(t, id)

	_, err = l.InsertUser(ctx, "alice", "other", domain.RoleViewer)
	require.ErrorIs(t, err, ErrDuplicateUsername)

	var count int
	require.NoError(t, l.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", "alice").Scan(&count))
	require.Equal(t, 1, count)

	u, err := l.AuthenticateUser(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, domain.RoleOperator, u.Role)
	require.False(t, u.MustChangeCredential)

	_, err = l.AuthenticateUser(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = l.AuthenticateUser(ctx, "mallory", "s3cret")
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	var stored string
	require.NoError(t, l.db.QueryRow("SELECT credential_hash FROM users WHERE username = ?", "alice").Scan(&stored))
	require.NotEqual(t, "s3cret", stored)
}

// TestLedger_InsertUserValidation rejects bad input before hashing.
func TestLedger_InsertUserValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	_, err := l.InsertUser(ctx, " ", "pw", domain.RoleViewer)
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, err = l.InsertUser(ctx, "bob", "", domain.RoleViewer)
	require.ErrorIs(t, err, ErrInvalidCredential)

	_, err = l.InsertUser(ctx, "bob", "pw", domain.Role("root"))
	require.ErrorIs(t, err, ErrInvalidRole)

	long := make([]byte, 73)
	for i := range long {
		long[i] = 'x'
	}

	_, err = l.InsertUser(ctx, "bob", string(long), domain.RoleViewer)
	require.ErrorIs(t, err, ErrInvalidCredential)
}

// TestLedger_BootstrapAdmin creates the administrator once and forces a credential change.
func TestLedger_BootstrapAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newLedger(t)

	created, err := l.EnsureBootstrapAdmin(ctx, "admin", "admin")
	require.NoError(t, err)
	require.True(t, created)

	created, err = l.EnsureBootstrapAdmin(ctx, "admin", "admin")
	require.NoError(t, err)
	require.False(t, created)

	u, err := l.AuthenticateUser(ctx, "admin", "admin")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdministrator, u.Role)
	require.True(t, u.MustChangeCredential)

	require.ErrorIs(t, l.ChangeCredential(ctx, "admin", "wrong", "n3w"), ErrAuthenticationFailed)
	require.NoError(t, l.ChangeCredential(ctx, "admin", "admin", "n3w"))

	_, err = l.AuthenticateUser(ctx, "admin", "admin")
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	u, err = l.AuthenticateUser(ctx, "admin", "n3w")
	require.NoError(t, err)
	require.False(t, u.MustChangeCredential)
}
