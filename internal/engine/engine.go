// Package engine provides the core screening daemon for Strikeline.
// It wires the seed queue, valuation pipeline, position table, admission
// policy, and drain into managed threads with one lifecycle.
package engine

// This file serves as the package documentation.
// The actual implementation is split across multiple files for clarity:
// - screener.go: Core orchestration engine
// - drain.go: Settlement pipeline over accepted rows
// - factory.go: Dependency injection factory
// - supervisor.go: Panic-safe concurrency utilities
