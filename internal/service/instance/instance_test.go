package instance

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// unusedPID is far above any pid the kernel hands out by default.
const unusedPID = 2147483000

// TestHelperProcess is not a real test; it idles as a second controller.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("ALARM_INSTANCE_HELPER") != "1" {
		t.Skip("helper process only")
	}

	time.Sleep(30 * time.Second)
}

// TestAcquireRelease creates and removes the lock.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "controller.lock")

	lock, err := Acquire(context.Background(), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(data))

	// Re-acquiring from the same process is allowed.
	_, err = Acquire(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, lock.Release())

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, lock.Release())
}

// TestAcquireReplacesStaleLock ignores dead owners and garbage.
func TestAcquireReplacesStaleLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for name, contents := range map[string]string{
		"dead":    strconv.Itoa(unusedPID),
		"garbage": "not a pid",
	} {
		path := filepath.Join(dir, name+".lock")
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

		lock, err := Acquire(context.Background(), path)
		require.NoError(t, err, name)
		require.NoError(t, lock.Release(), name)
	}
}

// TestReleaseKeepsForeignLock leaves a lock taken over by another process.
func TestReleaseKeepsForeignLock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "controller.lock")

	lock, err := Acquire(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(unusedPID)), 0o600))
	require.NoError(t, lock.Release())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestAcquireRefusesLiveOwner detects a second process of the same executable.
func TestAcquireRefusesLiveOwner(t *testing.T) {
	t.Parallel()

	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$")
	cmd.Env = append(os.Environ(), "ALARM_INSTANCE_HELPER=1")
	require.NoError(t, cmd.Start())

	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	path := filepath.Join(t.TempDir(), "controller.lock")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(cmd.Process.Pid)), 0o600))

	_, err := Acquire(context.Background(), path)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}
