package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/strikeline/strikeline/pkg/interfaces"
	"github.com/strikeline/strikeline/pkg/pipeline"
	"github.com/strikeline/strikeline/pkg/table"
	"github.com/strikeline/strikeline/pkg/types"
)

// Context entry names shared by the screening stages.
const (
	CtxTicker     = "ticker"
	CtxChain      = "chain"
	CtxCandidates = "candidates"
	CtxPositions  = "positions"
)

// Candidate is one enumerated put credit spread before scoring.
type Candidate struct {
	Key                types.Key
	Expiry             string
	ShortStrike        float64
	LongStrike         float64
	Credit             float64
	Collateral         float64
	ReturnOnCollateral float64
	Width              float64
	ShortDelta         float64
	OpenInterest       int
	BidAskPct          float64
	DaysToExpiry       int
}

// SeedBind stamps a ticker seed into a fresh item context. It is the bind
// function the ingestion producer uses over the seed queue.
func SeedBind(ticker string, c *pipeline.Context) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	c.Set(pipeline.NameKey, t)
	c.Set(CtxTicker, t)
}

// ChainStage pulls the option chain for the item's ticker. Tickers with
// nothing listed are dropped quietly.
func ChainStage(src interfaces.ChainSource) pipeline.Stage {
	return pipeline.NewProcessor("chain", pipeline.Signature{
		Reads:  []string{CtxTicker},
		Writes: []string{CtxChain},
	}, func(ctx context.Context, item *pipeline.Context) (*pipeline.Context, error) {
		ticker := item.String(CtxTicker)
		if ticker == "" {
			return nil, errors.New("item has no ticker")
		}
		chain, err := src.Chain(ctx, ticker)
		if err != nil {
			return nil, fmt.Errorf("fetch chain for %s: %w", ticker, err)
		}
		if len(chain.Quotes) == 0 {
			return nil, nil
		}
		return item.Set(CtxChain, chain), nil
	})
}

// SpreadStage enumerates put credit spreads from the chain: every short put
// below spot inside the delta ceiling, paired with the long put one width
// lower, across expiries inside the configured day window. Items yielding no
// viable spread are dropped.
func SpreadStage(cfg types.ScreeningConfig) pipeline.Stage {
	return pipeline.NewProcessor("spreads", pipeline.Signature{
		Reads:  []string{CtxChain},
		Writes: []string{CtxCandidates},
	}, func(_ context.Context, item *pipeline.Context) (*pipeline.Context, error) {
		raw, ok := item.Value(CtxChain)
		if !ok {
			return nil, errors.New("item has no chain")
		}
		chain, ok := raw.(types.OptionChain)
		if !ok {
			return nil, fmt.Errorf("chain entry holds %T", raw)
		}
		candidates := EnumerateSpreads(chain, cfg)
		if len(candidates) == 0 {
			return nil, nil
		}
		return item.Set(CtxCandidates, candidates), nil
	})
}

// EnumerateSpreads builds every viable put credit spread in the chain under
// cfg. The credit is priced at the natural, short bid against long ask, so
// a candidate's economics survive a worst-case fill.
func EnumerateSpreads(chain types.OptionChain, cfg types.ScreeningConfig) []Candidate {
	width := cfg.SpreadWidth()
	minDays, maxDays := cfg.DayWindow()
	ceiling := cfg.DeltaCeiling()
	contracts := cfg.Contracts()

	var out []Candidate
	for _, expiry := range chain.Expiries() {
		dte := daysUntil(chain.Asof, expiry)
		if dte < minDays || dte > maxDays {
			continue
		}
		puts := chain.Puts(expiry)
		byStrike := make(map[float64]types.OptionQuote, len(puts))
		for _, q := range puts {
			byStrike[q.Strike] = q
		}
		for _, short := range puts {
			if short.Strike >= chain.Spot {
				continue
			}
			if math.Abs(short.Delta) > ceiling {
				continue
			}
			long, ok := byStrike[short.Strike-width]
			if !ok {
				continue
			}
			credit := short.Bid - long.Ask
			if credit <= 0 || credit < cfg.MinCredit {
				continue
			}
			risk := width - credit
			if risk <= 0 {
				continue
			}
			out = append(out, Candidate{
				Key:                types.NewKey(chain.Ticker, expiry, long.Strike, short.Strike),
				Expiry:             expiry,
				ShortStrike:        short.Strike,
				LongStrike:         long.Strike,
				Credit:             credit,
				Collateral:         risk * 100 * float64(contracts),
				ReturnOnCollateral: credit / risk,
				Width:              width,
				ShortDelta:         short.Delta,
				OpenInterest:       minInt(short.OpenInterest, long.OpenInterest),
				BidAskPct:          math.Max(short.SpreadPct(), long.SpreadPct()),
				DaysToExpiry:       dte,
			})
		}
	}
	return out
}

// ScoreStage converts candidates into scored positions. The score is the
// admission priority: a 0-100 blend of annualized return on collateral,
// liquidity depth and short-delta headroom. Items whose best candidate
// stays under the admission floor are dropped.
func ScoreStage(cfg types.ScreeningConfig, minScore float64) pipeline.Stage {
	return pipeline.NewProcessor("score", pipeline.Signature{
		Reads:  []string{CtxCandidates},
		Writes: []string{CtxPositions},
	}, func(_ context.Context, item *pipeline.Context) (*pipeline.Context, error) {
		raw, ok := item.Value(CtxCandidates)
		if !ok {
			return nil, errors.New("item has no candidates")
		}
		candidates, ok := raw.([]Candidate)
		if !ok {
			return nil, fmt.Errorf("candidates entry holds %T", raw)
		}

		best := 0.0
		positions := make([]types.Position, 0, len(candidates))
		for _, c := range candidates {
			score := Score(c, cfg)
			if score > best {
				best = score
			}
			positions = append(positions, types.Position{
				Key:                c.Key,
				Score:              score,
				Premium:            c.Credit,
				Collateral:         c.Collateral,
				ReturnOnCollateral: c.ReturnOnCollateral,
				Width:              c.Width,
				ShortDelta:         c.ShortDelta,
				OpenInterest:       c.OpenInterest,
				BidAskPct:          c.BidAskPct,
				Quantity:           cfg.Contracts(),
			})
		}
		if best < minScore {
			return nil, nil
		}
		return item.Set(CtxPositions, positions), nil
	})
}

// Score rates one candidate 0-100 under the configured weight blend. Return
// is annualized against a 100%-per-year ceiling, liquidity blends open
// interest depth with quote tightness, and delta rewards distance from the
// configured ceiling.
func Score(c Candidate, cfg types.ScreeningConfig) float64 {
	if c.DaysToExpiry <= 0 {
		return 0
	}

	annualized := c.ReturnOnCollateral * 365 / float64(c.DaysToExpiry)
	returnScore := clamp01(annualized)

	oiScore := clamp01(float64(c.OpenInterest) / 1000)
	tightScore := clamp01(1 - c.BidAskPct/0.15)
	liquidityScore := 0.6*oiScore + 0.4*tightScore

	ceiling := cfg.DeltaCeiling()
	deltaScore := clamp01((ceiling - math.Abs(c.ShortDelta)) / ceiling)

	w := cfg.ScoringWeights()
	total := w.Return + w.Liquidity + w.Delta
	if total <= 0 {
		return 0
	}
	blended := (w.Return*returnScore + w.Liquidity*liquidityScore + w.Delta*deltaScore) / total
	return math.Round(blended*1000) / 10
}

// TableWriteStage is the ingestion consumer: scored positions land in the
// shared table, new keys as prospects, known keys refreshed in place.
func TableWriteStage(tbl *table.Table) pipeline.Stage {
	return pipeline.NewConsumer("table-write", []string{CtxPositions}, func(_ context.Context, item *pipeline.Context) error {
		raw, ok := item.Value(CtxPositions)
		if !ok {
			return errors.New("item has no positions")
		}
		positions, ok := raw.([]types.Position)
		if !ok {
			return fmt.Errorf("positions entry holds %T", raw)
		}
		tbl.Upsert(positions...)
		return nil
	})
}

func daysUntil(asof time.Time, expiry string) int {
	exp, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return -1
	}
	from := time.Date(asof.Year(), asof.Month(), asof.Day(), 0, 0, 0, 0, time.UTC)
	return int(exp.Sub(from).Hours() / 24)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
