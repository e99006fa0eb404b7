package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgonzalezm/AlarmMgmt/internal/service/orchestrator"
)

// execute runs the root command once and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer

	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return buf.String(), err
}

// TestCommands drives a full operator session against one ledger.
// Commands share package state, so the steps run sequentially.
func TestCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alarm-controller.yaml")

	contents := "db_path: " + filepath.Join(dir, "alarm.db") + "\n" +
		"lock_file: " + filepath.Join(dir, "alarm.lock") + "\n" +
		"log_level: error\n" +
		"deactivation_code: \"2468\"\n" +
		"sensors:\n" +
		"  - {module_id: 1, channel: 4, polarity: NO, pull: UP}\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	output, err := execute(t, "-c", path, "module", "add", "Front Door", "--status", "active")
	require.NoError(t, err)
	require.Contains(t, output, "Module 1 registered.")

	output, err = execute(t, "-c", path, "module", "list")
	require.NoError(t, err)
	require.Contains(t, output, "Front Door")
	require.Contains(t, output, "active")

	output, err = execute(t, "-c", path, "sensor", "list")
	require.NoError(t, err)
	require.Contains(t, output, "intrusion")
	require.Contains(t, output, "normal")

	output, err = execute(t, "-c", path, "alarm", "trigger", "1", "--type", "door_open")
	require.NoError(t, err)
	require.Contains(t, output, "Alarm 1 raised on module 1.")

	output, err = execute(t, "-c", path, "alarm", "list")
	require.NoError(t, err)
	require.Contains(t, output, "door_open")
	require.Contains(t, output, "Front Door")

	_, err = execute(t, "-c", path, "alarm", "trigger", "99")
	require.ErrorIs(t, err, orchestrator.ErrNotFound)
	require.Equal(t, 2, exitCode(err))

	_, err = execute(t, "-c", path, "deactivate", "0000")
	require.ErrorIs(t, err, orchestrator.ErrInvalidDeactivationCode)

	output, err = execute(t, "-c", path, "deactivate", "2468")
	require.NoError(t, err)
	require.Contains(t, output, "1 module(s) cleared")

	output, err = execute(t, "-c", path, "alarm", "ack", "1")
	require.NoError(t, err)
	require.Contains(t, output, "Alarm 1 acknowledged.")

	output, err = execute(t, "-c", path, "alarm", "list")
	require.NoError(t, err)
	require.Contains(t, output, "No active alarms.")

	output, err = execute(t, "-c", path, "alarm", "history")
	require.NoError(t, err)
	require.Contains(t, output, "door_open")

	output, err = execute(t, "-c", path, "status", "--json")
	require.NoError(t, err)
	require.Contains(t, output, `"modules": 1`)
	require.Contains(t, output, `"active_alarms": 0`)
}

// TestUserCommands checks the bootstrap administrator must rotate its
// credential before managing users.
func TestUserCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alarm-controller.yaml")

	contents := "db_path: " + filepath.Join(dir, "alarm.db") + "\n" +
		"lock_file: " + filepath.Join(dir, "alarm.lock") + "\n" +
		"log_level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	add := []string{
		"-c", path, "user", "add", "night-guard",
		"--admin", "admin", "--admin-credential", "admin",
		"--credential", "patrol-2026", "--role", "operator",
	}

	_, err := execute(t, add...)
	require.ErrorIs(t, err, orchestrator.ErrDenied)

	_, err = execute(t, "-c", path, "user", "passwd", "admin", "--current", "wrong", "--new", "s3cure-admin")
	require.ErrorIs(t, err, orchestrator.ErrDenied)

	_, err = execute(t, "-c", path, "user", "passwd", "admin", "--current", "admin", "--new", "s3cure-admin")
	require.NoError(t, err)

	add[8] = "s3cure-admin"

	output, err := execute(t, add...)
	require.NoError(t, err)
	require.Contains(t, output, "(night-guard) created.")

	_, err = execute(t, add...)
	require.ErrorIs(t, err, orchestrator.ErrDuplicate)
}
