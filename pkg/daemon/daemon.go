// Package daemon guards the screening daemon against double starts
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/strikeline/strikeline/pkg/logger"
)

// StateDirName is the per-project directory holding daemon runtime files.
const StateDirName = ".strikeline"

// Lock is a PID-file lock on the project root. Two daemons sharing one
// position store would interleave read-merge-rewrite cycles, so only one may
// run per project.
type Lock struct {
	pidFile string
	logger  logger.Logger
}

// NewLock creates a lock rooted at the project directory.
func NewLock(projectRoot string, log logger.Logger) *Lock {
	if log == nil {
		log = logger.Default()
	}
	return &Lock{
		pidFile: filepath.Join(projectRoot, StateDirName, "daemon.pid"),
		logger:  log,
	}
}

// Acquire writes this process's PID, failing if a live daemon already holds
// the lock. A PID file left behind by a dead process is taken over silently.
func (l *Lock) Acquire() error {
	if pid, err := l.holder(); err == nil && alive(pid) {
		return fmt.Errorf("%w (pid %d)", ErrDaemonAlreadyRunning, pid)
	}

	if err := os.MkdirAll(filepath.Dir(l.pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(l.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	l.logger.Debug("Acquired daemon lock", logger.WithField("pid", os.Getpid()))
	return nil
}

// Release removes the PID file if this process owns it. A lock held by
// another process is left alone.
func (l *Lock) Release() {
	pid, err := l.holder()
	if err != nil || pid != os.Getpid() {
		return
	}

	if err := os.Remove(l.pidFile); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("Failed to remove PID file", logger.WithField("error", err))
	}
}

// Status reports the PID on file and whether that process is alive.
func (l *Lock) Status() (int, bool) {
	pid, err := l.holder()
	if err != nil {
		return 0, false
	}
	return pid, alive(pid)
}

// holder reads the PID recorded in the lock file.
func (l *Lock) holder() (int, error) {
	data, err := os.ReadFile(l.pidFile)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed PID file %s", l.pidFile)
	}
	return pid, nil
}

// alive probes the process with signal 0, which delivers nothing.
func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
