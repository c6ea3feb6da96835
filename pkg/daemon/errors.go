package daemon

import "errors"

// ErrDaemonAlreadyRunning indicates a live daemon holds the lock. Callers
// check it with errors.Is.
var ErrDaemonAlreadyRunning = errors.New("daemon is already running")
