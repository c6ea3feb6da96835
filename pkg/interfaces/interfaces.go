// Package interfaces defines the contracts the engine's collaborators are
// injected through, keeping the orchestration layer testable
package interfaces

import (
	"context"

	"github.com/strikeline/strikeline/pkg/types"
)

// ChainSource supplies option chains for screening. Chain is called from a
// single pipeline goroutine; implementations must tolerate being called
// repeatedly for the same ticker within a cycle.
type ChainSource interface {
	Chain(ctx context.Context, ticker string) (types.OptionChain, error)
}

// PositionRepository persists drained positions. Save must be idempotent by
// position key: the drain delivers at least once and repeats a batch after
// any partial failure.
type PositionRepository interface {
	Save(ctx context.Context, positions []types.Position) error
	Close() error
}

// PositionNotifier surfaces admission and drain events to a human. A failed
// notification is logged and dropped, never returned, so alerting can never
// disturb the screening loop.
type PositionNotifier interface {
	NotifyAccepted(admitted, open, capacity int)
	NotifyPurchased(position types.Position)
	NotifyCycleFailure(thread string, err error)
}

// Dependencies aggregates the injectable collaborators the engine runs on.
type Dependencies struct {
	Source     ChainSource
	Repository PositionRepository
	Notifier   PositionNotifier
}
