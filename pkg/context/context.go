package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys for run tracing and correlation.
// Using unexported struct pointers prevents key collisions.
var (
	runIDKey     = &struct{}{}
	cycleKey     = &struct{}{}
	operationKey = &struct{}{}
	startTimeKey = &struct{}{}
)

// WithRunID adds a pipeline run ID to the context
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID retrieves the pipeline run ID from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-run"
}

// WithCycle adds a thread cycle counter to the context
func WithCycle(parent context.Context, cycle uint64) context.Context {
	return context.WithValue(parent, cycleKey, cycle)
}

// GetCycle retrieves the thread cycle counter from context, zero if unset
func GetCycle(ctx context.Context) uint64 {
	if n, ok := ctx.Value(cycleKey).(uint64); ok {
		return n
	}
	return 0
}

// WithOperation adds an operation name to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		return op
	}
	return "unknown-operation"
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the operation start time from context
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// GetDuration calculates the duration since the start time in context
func GetDuration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	return time.Since(startTime)
}

// GenerateRunID creates a new unique pipeline run ID
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// EnrichContext stamps a context for one unit of work: a fresh run ID if
// none is present, plus the start time.
func EnrichContext(parent context.Context) context.Context {
	ctx := parent

	if GetRunID(ctx) == "unknown-run" {
		ctx = WithRunID(ctx, GenerateRunID())
	}

	ctx = WithStartTime(ctx, time.Now())

	return ctx
}
