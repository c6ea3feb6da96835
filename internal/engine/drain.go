package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/strikeline/strikeline/pkg/interfaces"
	"github.com/strikeline/strikeline/pkg/pipeline"
	"github.com/strikeline/strikeline/pkg/policy"
	"github.com/strikeline/strikeline/pkg/table"
	"github.com/strikeline/strikeline/pkg/types"
)

// ctxPosition is the context entry drain stages hand a row around in.
const ctxPosition = "position"

// acceptedProducer yields the table's ACCEPTED rows. It re-snapshots at the
// start of every run, so each drain cycle sees the table as of that cycle.
type acceptedProducer struct {
	table *table.Table
	rows  []types.Position
	next  int
}

func newAcceptedProducer(tbl *table.Table) *acceptedProducer {
	return &acceptedProducer{table: tbl}
}

func (p *acceptedProducer) Name() string { return "accepted-rows" }

func (p *acceptedProducer) Reset() {
	p.rows = p.rows[:0]
	for _, row := range p.table.Snapshot() {
		if row.Status == types.StatusAccepted {
			p.rows = append(p.rows, row)
		}
	}
	p.next = 0
}

func (p *acceptedProducer) Next(ctx context.Context) (*pipeline.Context, error) {
	if ctx.Err() != nil || p.next >= len(p.rows) {
		return nil, pipeline.ErrExhausted
	}
	row := p.rows[p.next]
	p.next++

	c := pipeline.NewContext().
		Set(pipeline.NameKey, row.Key).
		Set(ctxPosition, row)
	return c, nil
}

// persistStage writes the row to the repository stamped PURCHASED. The table
// keeps the row as ACCEPTED until settleStage moves it, so a failed save
// leaves it eligible for the next drain cycle.
func persistStage(repo interfaces.PositionRepository) pipeline.Stage {
	sig := pipeline.Signature{
		Reads:  []string{ctxPosition},
		Writes: []string{ctxPosition},
	}
	return pipeline.NewProcessor("persist", sig,
		func(ctx context.Context, item *pipeline.Context) (*pipeline.Context, error) {
			row, err := positionFrom(item)
			if err != nil {
				return nil, err
			}

			row.Status = types.StatusPurchased
			row.Updated = time.Now()

			if err := repo.Save(ctx, []types.Position{row}); err != nil {
				return nil, fmt.Errorf("persist %s: %w", row.Key, err)
			}
			return item.Set(ctxPosition, row), nil
		})
}

// settleStage marks the row PURCHASED in the table, evicts it, and notifies.
func settleStage(tbl *table.Table, notify interfaces.PositionNotifier) pipeline.Stage {
	return pipeline.NewConsumer("settle", []string{ctxPosition},
		func(ctx context.Context, item *pipeline.Context) error {
			row, err := positionFrom(item)
			if err != nil {
				return err
			}

			if _, err := tbl.Apply(policy.Purchase(row.Key)); err != nil {
				return fmt.Errorf("mark %s purchased: %w", row.Key, err)
			}
			tbl.Evict(row.Key)

			notify.NotifyPurchased(row)
			return nil
		})
}

func positionFrom(item *pipeline.Context) (types.Position, error) {
	v, ok := item.Value(ctxPosition)
	if !ok {
		return types.Position{}, fmt.Errorf("no position on context")
	}
	row, ok := v.(types.Position)
	if !ok {
		return types.Position{}, fmt.Errorf("position entry holds %T", v)
	}
	return row, nil
}
