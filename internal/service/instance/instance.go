package instance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"

	"github.com/sgonzalezm/AlarmMgmt/internal/logger"
)

// lockPermissions restricts the lock file to the owner.
const lockPermissions = 0o600

// ErrAlreadyRunning is returned when another controller owns the lock.
var ErrAlreadyRunning = errors.New("another controller instance is running")

// Lock is a held single-instance lock.
type Lock struct {
	path string
	pid  int
}

// Acquire writes the current process id to path. A lock left by a process
// that no longer runs the controller executable is treated as stale and
// replaced; a live owner yields ErrAlreadyRunning.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	path = filepath.Clean(path)
	self := os.Getpid()

	owner, err := readOwner(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No lock yet.
	case err != nil:
		logger.WarnKV(ctx, "Unreadable lock file, replacing it", "path", path, "error", err)
	case owner != self:
		running, err := isController(owner)
		if err != nil {
			return nil, fmt.Errorf("inspect lock owner %d: %w", owner, err)
		}

		if running {
			return nil, fmt.Errorf("%w: pid %d holds %s", ErrAlreadyRunning, owner, path)
		}

		logger.InfoKV(ctx, "Removing stale lock", "path", path, "pid", owner)
	}

	if err = os.WriteFile(path, []byte(strconv.Itoa(self)+"\n"), lockPermissions); err != nil {
		return nil, fmt.Errorf("write lock: %w", err)
	}

	logger.DebugKV(ctx, "Instance lock acquired", "path", path, "pid", self)

	return &Lock{path: path, pid: self}, nil
}

// Release removes the lock file if this process still owns it.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	owner, err := readOwner(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil || owner != l.pid {
		return nil
	}

	if err = os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock: %w", err)
	}

	return nil
}

func readOwner(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse lock owner: %w", err)
	}

	return pid, nil
}

// isController reports whether pid is alive and runs the same executable
// as this process, which guards against recycled process ids.
func isController(pid int) (bool, error) {
	owner, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	if owner == nil {
		return false, nil
	}

	self, err := ps.FindProcess(os.Getpid())
	if err != nil {
		return false, err
	}

	if self == nil {
		return true, nil
	}

	return owner.Executable() == self.Executable(), nil
}
