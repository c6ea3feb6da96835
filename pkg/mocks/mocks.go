// Package mocks provides mock implementations of interfaces for testing.
// These follow Go best practices for test doubles.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/strikeline/strikeline/pkg/interfaces"
	"github.com/strikeline/strikeline/pkg/types"
)

// Compile-time interface checks
var (
	_ interfaces.ChainSource        = (*MockChainSource)(nil)
	_ interfaces.PositionRepository = (*MockRepository)(nil)
	_ interfaces.PositionNotifier   = (*MockNotifier)(nil)
)

// MockChainSource is a mock implementation of ChainSource for testing
type MockChainSource struct {
	mu         sync.RWMutex
	chains     map[string]types.OptionChain
	chainError error
	requested  []string
}

// NewMockChainSource creates a new mock chain source
func NewMockChainSource() *MockChainSource {
	return &MockChainSource{
		chains: make(map[string]types.OptionChain),
	}
}

// RegisterChain registers the chain returned for a ticker
func (m *MockChainSource) RegisterChain(ticker string, chain types.OptionChain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chains[ticker] = chain
}

// Chain returns the registered chain for a ticker
func (m *MockChainSource) Chain(ctx context.Context, ticker string) (types.OptionChain, error) {
	if err := ctx.Err(); err != nil {
		return types.OptionChain{}, err
	}

	m.mu.Lock()
	m.requested = append(m.requested, ticker)
	err := m.chainError
	chain, ok := m.chains[ticker]
	m.mu.Unlock()

	if err != nil {
		return types.OptionChain{}, err
	}
	if !ok {
		return types.OptionChain{}, fmt.Errorf("no chain registered for %s", ticker)
	}
	return chain, nil
}

// SetChainError sets the error to return from Chain
func (m *MockChainSource) SetChainError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chainError = err
}

// GetCallCount returns the number of times Chain was called
func (m *MockChainSource) GetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requested)
}

// GetRequestedTickers returns the tickers requested so far
func (m *MockChainSource) GetRequestedTickers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.requested))
	copy(out, m.requested)
	return out
}

// MockRepository is a mock implementation of PositionRepository for testing
type MockRepository struct {
	mu         sync.RWMutex
	saved      map[types.Key]types.Position
	batches    [][]types.Position
	saveError  error
	closeError error
	closed     bool
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		saved: make(map[types.Key]types.Position),
	}
}

// Save records the batch and merges it by key
func (m *MockRepository) Save(ctx context.Context, positions []types.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveError != nil {
		return m.saveError
	}

	batch := make([]types.Position, len(positions))
	copy(batch, positions)
	m.batches = append(m.batches, batch)

	for _, p := range positions {
		m.saved[p.Key] = p
	}
	return nil
}

// Close marks the repository closed
func (m *MockRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return m.closeError
}

// SetSaveError sets the error to return from Save
func (m *MockRepository) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetCloseError sets the error to return from Close
func (m *MockRepository) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

// Saved returns the merged rows sorted by key
func (m *MockRepository) Saved() []types.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]types.Key, 0, len(m.saved))
	for k := range m.saved {
		keys = append(keys, k)
	}
	types.SortKeys(keys)

	out := make([]types.Position, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.saved[k])
	}
	return out
}

// Get returns the saved row for a key
func (m *MockRepository) Get(key types.Key) (types.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.saved[key]
	return p, ok
}

// SavedCount returns the number of distinct keys saved
func (m *MockRepository) SavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}

// BatchCount returns the number of Save calls that succeeded
func (m *MockRepository) BatchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.batches)
}

// WasClosed reports whether Close was called
func (m *MockRepository) WasClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// AcceptedEvent records one NotifyAccepted call
type AcceptedEvent struct {
	Admitted int
	Open     int
	Capacity int
}

// CycleFailure records one NotifyCycleFailure call
type CycleFailure struct {
	Thread string
	Err    error
}

// MockNotifier is a mock implementation of PositionNotifier for testing
type MockNotifier struct {
	mu        sync.RWMutex
	accepted  []AcceptedEvent
	purchased []types.Position
	failures  []CycleFailure
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyAccepted records an admission event
func (m *MockNotifier) NotifyAccepted(admitted, open, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted = append(m.accepted, AcceptedEvent{Admitted: admitted, Open: open, Capacity: capacity})
}

// NotifyPurchased records a settlement event
func (m *MockNotifier) NotifyPurchased(position types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchased = append(m.purchased, position)
}

// NotifyCycleFailure records a cycle failure
func (m *MockNotifier) NotifyCycleFailure(thread string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, CycleFailure{Thread: thread, Err: err})
}

// AcceptedEvents returns the recorded admission events
func (m *MockNotifier) AcceptedEvents() []AcceptedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AcceptedEvent, len(m.accepted))
	copy(out, m.accepted)
	return out
}

// PurchasedKeys returns the keys of recorded settlements
func (m *MockNotifier) PurchasedKeys() []types.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]types.Key, 0, len(m.purchased))
	for _, p := range m.purchased {
		keys = append(keys, p.Key)
	}
	types.SortKeys(keys)
	return keys
}

// FailureCount returns the number of recorded cycle failures
func (m *MockNotifier) FailureCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.failures)
}

// LastFailure returns the most recent cycle failure
func (m *MockNotifier) LastFailure() (CycleFailure, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.failures) == 0 {
		return CycleFailure{}, false
	}
	return m.failures[len(m.failures)-1], true
}
