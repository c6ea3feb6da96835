package market_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/market"
	"github.com/strikeline/strikeline/pkg/pipeline"
	"github.com/strikeline/strikeline/pkg/table"
	"github.com/strikeline/strikeline/pkg/types"
)

// testChain prices two put strikes 31 days out: a 95/90 spread collects
// 1.20 - 0.65 = 0.55 against 4.45 of risk.
func testChain() types.OptionChain {
	return types.OptionChain{
		Ticker: "SPY",
		Spot:   100,
		Asof:   valuation,
		Quotes: []types.OptionQuote{
			{Ticker: "SPY", Right: types.RightPut, Expiry: "2026-09-25", Strike: 90, Bid: 0.55, Ask: 0.65, Delta: -0.12, OpenInterest: 800, Volume: 120},
			{Ticker: "SPY", Right: types.RightPut, Expiry: "2026-09-25", Strike: 95, Bid: 1.20, Ask: 1.30, Delta: -0.22, OpenInterest: 600, Volume: 90},
		},
	}
}

type stubSource struct {
	chain types.OptionChain
	err   error
}

func (s *stubSource) Chain(context.Context, string) (types.OptionChain, error) {
	return s.chain, s.err
}

func seededItem(ticker string) *pipeline.Context {
	c := pipeline.NewContext()
	market.SeedBind(ticker, c)
	return c
}

func TestEnumerateSpreadsBuildsViableCandidate(t *testing.T) {
	cfg := types.ScreeningConfig{Width: 5, MinDays: 21, MaxDays: 45, MaxShortDelta: 0.35, Quantity: 1}

	candidates := market.EnumerateSpreads(testChain(), cfg)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, types.NewKey("SPY", "2026-09-25", 90, 95), c.Key)
	assert.Equal(t, 95.0, c.ShortStrike)
	assert.Equal(t, 90.0, c.LongStrike)
	assert.InDelta(t, 0.55, c.Credit, 1e-9)
	assert.InDelta(t, 445.0, c.Collateral, 1e-9)
	assert.InDelta(t, 0.55/4.45, c.ReturnOnCollateral, 1e-9)
	assert.Equal(t, -0.22, c.ShortDelta)
	assert.Equal(t, 600, c.OpenInterest)
	assert.Equal(t, 31, c.DaysToExpiry)
}

func TestEnumerateSpreadsRespectsDeltaCeiling(t *testing.T) {
	cfg := types.ScreeningConfig{Width: 5, MinDays: 21, MaxDays: 45, MaxShortDelta: 0.15}

	// The only short leg with a long pair carries 0.22 delta, over the cap.
	candidates := market.EnumerateSpreads(testChain(), cfg)
	assert.Empty(t, candidates)
}

func TestEnumerateSpreadsRespectsDayWindow(t *testing.T) {
	cfg := types.ScreeningConfig{Width: 5, MinDays: 40, MaxDays: 60, MaxShortDelta: 0.35}

	candidates := market.EnumerateSpreads(testChain(), cfg)
	assert.Empty(t, candidates, "31 dte sits outside a 40..60 window")
}

func TestEnumerateSpreadsRequiresPositiveCredit(t *testing.T) {
	chain := testChain()
	chain.Quotes[1].Bid = 0.60 // credit would be 0.60 - 0.65 < 0

	cfg := types.ScreeningConfig{Width: 5, MinDays: 21, MaxDays: 45, MaxShortDelta: 0.35}
	candidates := market.EnumerateSpreads(chain, cfg)
	assert.Empty(t, candidates)
}

func TestEnumerateSpreadsRequiresMinCredit(t *testing.T) {
	cfg := types.ScreeningConfig{Width: 5, MinDays: 21, MaxDays: 45, MaxShortDelta: 0.35, MinCredit: 0.75}

	candidates := market.EnumerateSpreads(testChain(), cfg)
	assert.Empty(t, candidates, "0.55 credit must not clear a 0.75 floor")
}

func TestScoreRewardsReturn(t *testing.T) {
	cfg := types.ScreeningConfig{}
	base := market.Candidate{
		ReturnOnCollateral: 0.02,
		OpenInterest:       600,
		BidAskPct:          0.05,
		ShortDelta:         -0.22,
		DaysToExpiry:       31,
	}
	richer := base
	richer.ReturnOnCollateral = 0.05

	assert.Greater(t, market.Score(richer, cfg), market.Score(base, cfg))
	assert.GreaterOrEqual(t, market.Score(base, cfg), 0.0)
	assert.LessOrEqual(t, market.Score(richer, cfg), 100.0)
}

func TestScoreRewardsLiquidity(t *testing.T) {
	cfg := types.ScreeningConfig{}
	thin := market.Candidate{ReturnOnCollateral: 0.10, OpenInterest: 50, BidAskPct: 0.12, ShortDelta: -0.22, DaysToExpiry: 31}
	deep := thin
	deep.OpenInterest = 900
	deep.BidAskPct = 0.02

	assert.Greater(t, market.Score(deep, cfg), market.Score(thin, cfg))
}

func TestScoreRewardsDeltaHeadroom(t *testing.T) {
	cfg := types.ScreeningConfig{}
	risky := market.Candidate{ReturnOnCollateral: 0.10, OpenInterest: 600, BidAskPct: 0.05, ShortDelta: -0.34, DaysToExpiry: 31}
	safe := risky
	safe.ShortDelta = -0.10

	assert.Greater(t, market.Score(safe, cfg), market.Score(risky, cfg))
}

func TestChainStageFetchesAndStoresChain(t *testing.T) {
	stage := market.ChainStage(&stubSource{chain: testChain()})

	out, err := stage.Execute(context.Background(), seededItem("SPY"))
	require.NoError(t, err)
	require.NotNil(t, out)

	raw, ok := out.Value(market.CtxChain)
	require.True(t, ok)
	chain := raw.(types.OptionChain)
	assert.Equal(t, "SPY", chain.Ticker)
}

func TestChainStageDropsEmptyChains(t *testing.T) {
	stage := market.ChainStage(&stubSource{chain: types.OptionChain{Ticker: "XYZ"}})

	out, err := stage.Execute(context.Background(), seededItem("XYZ"))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestChainStagePropagatesSourceErrors(t *testing.T) {
	stage := market.ChainStage(&stubSource{err: errors.New("feed offline")})

	_, err := stage.Execute(context.Background(), seededItem("SPY"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPY")
}

func TestSpreadStageDropsWhenNothingViable(t *testing.T) {
	cfg := types.ScreeningConfig{Width: 5, MinDays: 40, MaxDays: 60}
	stage := market.SpreadStage(cfg)

	item := seededItem("SPY").Set(market.CtxChain, testChain())
	out, err := stage.Execute(context.Background(), item)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestScoreStageDropsBelowFloor(t *testing.T) {
	cfg := types.ScreeningConfig{Width: 5, MinDays: 21, MaxDays: 45, MaxShortDelta: 0.35}
	candidates := market.EnumerateSpreads(testChain(), cfg)
	require.NotEmpty(t, candidates)

	item := seededItem("SPY").Set(market.CtxCandidates, candidates)
	out, err := market.ScoreStage(cfg, 99.9).Execute(context.Background(), item)
	require.NoError(t, err)
	assert.Nil(t, out, "no candidate can clear a 99.9 floor")

	item = seededItem("SPY").Set(market.CtxCandidates, candidates)
	out, err = market.ScoreStage(cfg, 0).Execute(context.Background(), item)
	require.NoError(t, err)
	require.NotNil(t, out)

	raw, ok := out.Value(market.CtxPositions)
	require.True(t, ok)
	positions := raw.([]types.Position)
	require.Len(t, positions, 1)
	assert.Equal(t, candidates[0].Key, positions[0].Key)
	assert.Greater(t, positions[0].Score, 0.0)
	assert.Equal(t, 1, positions[0].Quantity)
}

func TestTableWriteStageUpserts(t *testing.T) {
	tbl := table.New(table.Config{Now: func() time.Time { return valuation }}, logger.Default())
	stage := market.TableWriteStage(tbl)

	key := types.NewKey("SPY", "2026-09-25", 90, 95)
	item := seededItem("SPY").Set(market.CtxPositions, []types.Position{{Key: key, Score: 72}})

	out, err := stage.Execute(context.Background(), item)
	require.NoError(t, err)
	require.NotNil(t, out)

	row, ok := tbl.Get(key)
	require.True(t, ok)
	assert.Equal(t, types.StatusProspect, row.Status)
	assert.Equal(t, 72.0, row.Score)
}

func TestFullScreeningChainOverPipeline(t *testing.T) {
	cfg := types.ScreeningConfig{Width: 5, MinDays: 21, MaxDays: 45, MaxShortDelta: 0.35}
	tbl := table.New(table.Config{Now: func() time.Time { return valuation }}, logger.Default())

	producer := pipeline.NewSliceProducer("tickers", []string{"SPY"}, market.SeedBind)
	p := pipeline.New("scan", producer, logger.Default(),
		market.ChainStage(&stubSource{chain: testChain()}),
		market.SpreadStage(cfg),
		market.ScoreStage(cfg, 0),
		market.TableWriteStage(tbl),
	)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, tbl.Len())
}
