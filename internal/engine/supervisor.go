package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/strikeline/strikeline/pkg/logger"
)

// Supervisor wraps errgroup.Group with panic recovery so a panicking
// shutdown path cannot take the daemon down with it.
type Supervisor struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSupervisor creates a new Supervisor with panic recovery
func NewSupervisor(ctx context.Context, log logger.Logger) (*Supervisor, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &Supervisor{
		group:  g,
		logger: log,
	}, ctx
}

// Go runs the given function in a new goroutine with panic recovery.
// Any panic is converted to an error and logged with stack trace.
func (s *Supervisor) Go(fn func() error) {
	s.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()

				panicErr := fmt.Errorf("goroutine panic: %v", r)

				s.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(stack)))

				err = panicErr
			}
		}()

		return fn()
	})
}

// SetLimit sets the maximum number of concurrent goroutines.
func (s *Supervisor) SetLimit(n int) {
	s.group.SetLimit(n)
}

// Wait blocks until all goroutines have completed or any returns error.
// Returns the first error encountered.
func (s *Supervisor) Wait() (err error) {
	// Handle panics during Wait() itself
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic during Supervisor.Wait()",
				logger.WithField("panic", r),
				logger.WithField("stack_trace", string(debug.Stack())))
			err = fmt.Errorf("wait panic: %v", r)
		}
	}()

	return s.group.Wait()
}
