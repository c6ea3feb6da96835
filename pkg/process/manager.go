// Package process coordinates daemon lifecycle and OS signals
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/strikeline/strikeline/pkg/logger"
)

const heartbeatInterval = 10 * time.Second

// Manager handles process lifecycle and signals
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	heartbeatFunc    func()
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
	quit             chan struct{}
	done             chan struct{}
	stopOnce         sync.Once
	doneOnce         sync.Once
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		logger:           log,
		shutdownHandlers: make([]func(), 0),
		quit:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// RegisterShutdownHandler adds a shutdown handler. Handlers run once, in
// reverse registration order, when a signal arrives or the context ends.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// SetHeartbeat sets a function invoked periodically while the manager runs
func (m *Manager) SetHeartbeat(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeatFunc = fn
}

// Start starts the process manager with the given context.
// The context controls the lifetime of the manager.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	heartbeat := m.heartbeatFunc
	m.mu.Unlock()

	// Handle OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.closeDone()
		defer signal.Stop(sigChan)

		select {
		case <-ctx.Done():
			m.handleShutdown()
		case sig := <-sigChan:
			m.logger.Info("Received signal", logger.WithField("signal", sig.String()))
			m.handleShutdown()
		case <-m.quit:
		}
	}()

	if heartbeat != nil {
		m.startHeartbeat(ctx)
	}
}

// Stop stops the manager without running shutdown handlers. Used when the
// caller has already torn the daemon down itself.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.stopOnce.Do(func() { close(m.quit) })
	m.wg.Wait()
}

// Done returns a channel closed once shutdown handlers have finished
// (or the manager was stopped).
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// IsRunning checks if the process manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Private methods

func (m *Manager) handleShutdown() {
	m.logger.Info("Initiating graceful shutdown...")

	// Call shutdown handlers in reverse order
	m.mu.Lock()
	handlers := make([]func(), len(m.shutdownHandlers))
	copy(handlers, m.shutdownHandlers)
	m.running = false
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}

func (m *Manager) closeDone() {
	m.doneOnce.Do(func() { close(m.done) })
}

func (m *Manager) startHeartbeat(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.Lock()
				fn := m.heartbeatFunc
				m.mu.Unlock()
				if fn != nil {
					fn()
				}
			}
		}
	}()
}
