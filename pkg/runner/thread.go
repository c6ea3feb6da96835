// Package runner supervises long-running worker threads with one-shot,
// cyclic and repeating run policies and cooperative cancellation
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	pcontext "github.com/strikeline/strikeline/pkg/context"
	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/pipeline"
)

var (
	// ErrJoinTimeout is returned when Join's deadline passes before the
	// thread reaches Stopped. The thread itself keeps running.
	ErrJoinTimeout = errors.New("join timed out")

	// ErrNotStarted is returned by Join on a thread that was never started.
	ErrNotStarted = errors.New("thread not started")
)

// State tracks a thread through its lifecycle. Transitions only move
// forward: Created, Running, Cancelling, Stopped.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateCancelling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type runPolicy int

const (
	runOnce runPolicy = iota
	runCyclic
	runRepeating
)

// Thread runs a pipeline or a bare callable on its own goroutine under a
// fixed run policy. Cancellation is cooperative: Cease is observed between
// cycles and during the inter-cycle pause, never mid-item, so an in-flight
// cycle always finishes cleanly.
type Thread struct {
	name     string
	policy   runPolicy
	pipe     *pipeline.Pipeline
	fn       func(context.Context) error
	interval time.Duration
	log      logger.Logger

	state   atomic.Int32
	started sync.Once
	ceased  sync.Once
	cease   chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	failure error
	cycles  uint64
}

// NewOnce builds a thread that runs the pipeline a single time, to producer
// exhaustion, then stops.
func NewOnce(name string, pipe *pipeline.Pipeline, log logger.Logger) *Thread {
	t := newThread(name, runOnce, log)
	t.pipe = pipe
	return t
}

// NewCyclic builds a thread that re-runs the pipeline until ceased, pausing
// interval between runs.
func NewCyclic(name string, pipe *pipeline.Pipeline, interval time.Duration, log logger.Logger) *Thread {
	t := newThread(name, runCyclic, log)
	t.pipe = pipe
	t.interval = interval
	return t
}

// NewRepeating builds a thread that invokes fn until ceased, pausing
// interval between invocations. The first invocation happens immediately.
func NewRepeating(name string, fn func(context.Context) error, interval time.Duration, log logger.Logger) *Thread {
	t := newThread(name, runRepeating, log)
	t.fn = fn
	t.interval = interval
	return t
}

func newThread(name string, p runPolicy, log logger.Logger) *Thread {
	if log == nil {
		log = logger.Default()
	}
	return &Thread{
		name:   name,
		policy: p,
		log:    log.WithThread(name),
		cease:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Name returns the thread's name as used in logs.
func (t *Thread) Name() string { return t.name }

// State returns the current lifecycle state.
func (t *Thread) State() State { return State(t.state.Load()) }

// Alive reports whether the loop goroutine is still running.
func (t *Thread) Alive() bool {
	s := t.State()
	return s == StateRunning || s == StateCancelling
}

// Cycles returns how many cycles have begun so far.
func (t *Thread) Cycles() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cycles
}

// Start launches the run loop on its own goroutine. Calling Start more than
// once has no effect.
func (t *Thread) Start() {
	t.started.Do(func() {
		t.state.Store(int32(StateRunning))
		t.log.Debug("thread starting")
		go t.loop()
	})
}

// Cease requests cancellation and returns immediately. It is idempotent and
// safe before Start: the thread then stops as soon as it starts.
func (t *Thread) Cease() {
	t.ceased.Do(func() {
		t.state.CompareAndSwap(int32(StateRunning), int32(StateCancelling))
		close(t.cease)
	})
}

// Join blocks until the thread reaches Stopped and returns the fatal loop
// failure, if any. A timeout of zero or less waits indefinitely; otherwise
// ErrJoinTimeout is returned once the deadline passes, without killing the
// thread.
func (t *Thread) Join(timeout time.Duration) error {
	if t.State() == StateCreated {
		return ErrNotStarted
	}
	if timeout <= 0 {
		<-t.done
		return t.takeFailure()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.done:
		return t.takeFailure()
	case <-timer.C:
		return ErrJoinTimeout
	}
}

func (t *Thread) takeFailure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

func (t *Thread) loop() {
	defer func() {
		t.state.Store(int32(StateStopped))
		t.log.Debug("thread stopped")
		close(t.done)
	}()

	ctx := context.Background()

	for {
		select {
		case <-t.cease:
			return
		default:
		}

		t.mu.Lock()
		t.cycles++
		cycle := t.cycles
		t.mu.Unlock()

		if fatal := t.runCycle(ctx, cycle); fatal != nil {
			t.mu.Lock()
			t.failure = fatal
			t.mu.Unlock()
			return
		}

		if t.policy == runOnce {
			return
		}

		timer := time.NewTimer(t.interval)
		select {
		case <-t.cease:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runCycle executes one unit of work. A unit failure is logged and absorbed
// so the loop keeps cycling; the returned error is only non-nil when the
// error-handling path itself failed, which stops the loop and surfaces
// through Join.
func (t *Thread) runCycle(ctx context.Context, cycle uint64) error {
	ctx = pcontext.WithCycle(ctx, cycle)
	ctx = pcontext.WithOperation(ctx, t.name)
	err := t.invoke(ctx, cycle)
	if err == nil {
		return nil
	}
	return t.report(cycle, err)
}

// invoke runs one cycle with panic containment.
func (t *Thread) invoke(ctx context.Context, cycle uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v\n%s", r, debug.Stack())
		}
	}()

	if t.policy == runRepeating {
		started := time.Now()
		if err := t.fn(ctx); err != nil {
			return err
		}
		t.log.Debug("cycle complete",
			logger.WithField("cycle", cycle),
			logger.WithField("elapsed", time.Since(started).Round(time.Millisecond).String()))
		return nil
	}

	stats, err := t.pipe.Run(ctx)
	if err != nil {
		return err
	}
	if stats.Produced > 0 {
		t.log.Info("cycle complete",
			logger.WithField("cycle", cycle),
			logger.WithField("produced", stats.Produced),
			logger.WithField("completed", stats.Completed),
			logger.WithField("dropped", stats.Dropped),
			logger.WithField("failed", stats.Failed),
			logger.WithField("elapsed", stats.Elapsed.Round(time.Millisecond).String()))
	}
	return nil
}

// report handles a cycle failure. It runs under its own recover because a
// panic while handling an error leaves nothing trustworthy to continue with.
func (t *Thread) report(cycle uint64, cause error) (fatal error) {
	defer func() {
		if r := recover(); r != nil {
			fatal = fmt.Errorf("error handling failed: %v (cycle %d failure: %w)", r, cycle, cause)
		}
	}()
	t.log.Error("cycle failed",
		logger.WithField("cycle", cycle),
		logger.WithField("error", cause.Error()))
	return nil
}
