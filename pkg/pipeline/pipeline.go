// Package pipeline provides composable stage chains over per-item contexts
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	pcontext "github.com/strikeline/strikeline/pkg/context"
	"github.com/strikeline/strikeline/pkg/logger"
)

// RunStats summarizes one pipeline run.
type RunStats struct {
	RunID     string
	Produced  int
	Completed int
	Dropped   int
	Failed    int
	Elapsed   time.Duration
	Failures  []ItemFailure
}

// ItemFailure records a stage error against the item that caused it.
type ItemFailure struct {
	Key   string
	Stage string
	Err   error
}

// Pipeline is an ordered stage chain fed by a producer. One Run pulls items
// from the producer until exhaustion and carries each item through every
// stage in order. A failing item is logged and skipped; the run keeps going.
//
// Pipeline itself implements Stage, so a chain can nest inside a larger
// pipeline as a single composite stage.
type Pipeline struct {
	name     string
	producer Producer
	stages   []Stage
	log      logger.Logger
}

// New assembles a pipeline. A nil logger falls back to the package default.
func New(name string, producer Producer, log logger.Logger, stages ...Stage) *Pipeline {
	if log == nil {
		log = logger.Default()
	}
	return &Pipeline{name: name, producer: producer, stages: stages, log: log}
}

// Run executes one full pass over the producer. Each produced item travels
// the stage chain in order; a stage returning nil drops the item, a stage
// error is recorded against the item's key and the run continues with the
// next item. Only a producer failure aborts the run itself.
func (p *Pipeline) Run(ctx context.Context) (RunStats, error) {
	ctx = pcontext.EnrichContext(ctx)
	stats := RunStats{RunID: pcontext.GetRunID(ctx)}

	if r, ok := p.producer.(Restartable); ok {
		r.Reset()
	}

	for {
		item, err := p.producer.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			stats.Elapsed = pcontext.GetDuration(ctx)
			return stats, fmt.Errorf("producer %s: %w", p.producer.Name(), err)
		}
		stats.Produced++
		p.process(ctx, item, &stats)
	}

	stats.Elapsed = pcontext.GetDuration(ctx)
	return stats, nil
}

// process carries one item through the stage chain, updating stats.
func (p *Pipeline) process(ctx context.Context, item *Context, stats *RunStats) {
	key := item.Key()
	for _, stage := range p.stages {
		next, err := p.executeStage(ctx, stage, item)
		if err != nil {
			stats.Failed++
			stats.Failures = append(stats.Failures, ItemFailure{Key: key, Stage: stage.Name(), Err: err})
			logger.WithContext(ctx, p.log).Error("stage failed, item skipped",
				logger.WithField("pipeline", p.name),
				logger.WithField("stage", stage.Name()),
				logger.WithField("key", key),
				logger.WithField("error", err.Error()))
			return
		}
		if next == nil {
			stats.Dropped++
			return
		}
		item = next
	}
	stats.Completed++
}

// executeStage isolates a single stage call, converting panics into stage
// errors so one bad item cannot take down the whole run.
func (p *Pipeline) executeStage(ctx context.Context, stage Stage, item *Context) (out *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &StageError{Stage: stage.Name(), Key: item.Key(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, err = stage.Execute(ctx, item)
	if err != nil {
		return nil, &StageError{Stage: stage.Name(), Key: item.Key(), Err: err}
	}
	return out, nil
}

// Name implements Stage.
func (p *Pipeline) Name() string { return p.name }

// Signature implements Stage by deriving the nested view of the chain: the
// reads no earlier stage satisfies, and everything the chain writes.
func (p *Pipeline) Signature() Signature {
	written := make(map[string]bool)
	seenRead := make(map[string]bool)
	seenWrite := make(map[string]bool)
	var sig Signature
	for _, s := range p.stages {
		inner := s.Signature()
		for _, r := range inner.Reads {
			if !written[r] && !seenRead[r] {
				seenRead[r] = true
				sig.Reads = append(sig.Reads, r)
			}
		}
		for _, w := range inner.Writes {
			written[w] = true
			if !seenWrite[w] {
				seenWrite[w] = true
				sig.Writes = append(sig.Writes, w)
			}
		}
	}
	return sig
}

// Execute implements Stage: the chain runs for a single item, without the
// producer. Stage errors propagate to the enclosing pipeline, which isolates
// them per item as usual.
func (p *Pipeline) Execute(ctx context.Context, item *Context) (*Context, error) {
	for _, stage := range p.stages {
		next, err := stage.Execute(ctx, item)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		item = next
	}
	return item, nil
}

var _ Stage = (*Pipeline)(nil)
