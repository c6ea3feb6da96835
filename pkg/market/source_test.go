package market_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strikeline/strikeline/pkg/market"
	"github.com/strikeline/strikeline/pkg/types"
)

var valuation = time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)

func pinnedSource() *market.SimulatedSource {
	return market.NewSimulatedSourceAt(func() time.Time { return valuation })
}

func TestSimulatedChainIsDeterministicWithinDay(t *testing.T) {
	a, err := pinnedSource().Chain(context.Background(), "SPY")
	require.NoError(t, err)
	b, err := pinnedSource().Chain(context.Background(), "spy ")
	require.NoError(t, err)

	assert.Equal(t, a.Spot, b.Spot)
	assert.Equal(t, a.Quotes, b.Quotes, "same ticker and day must price identically")
}

func TestSimulatedChainVariesByTicker(t *testing.T) {
	src := pinnedSource()
	a, err := src.Chain(context.Background(), "SPY")
	require.NoError(t, err)
	b, err := src.Chain(context.Background(), "QQQ")
	require.NoError(t, err)

	assert.NotEqual(t, a.Spot, b.Spot)
}

func TestSimulatedChainQuoteInvariants(t *testing.T) {
	chain, err := pinnedSource().Chain(context.Background(), "IWM")
	require.NoError(t, err)

	require.NotEmpty(t, chain.Quotes)
	assert.Greater(t, chain.Spot, 0.0)
	assert.Equal(t, "IWM", chain.Ticker)

	for _, q := range chain.Quotes {
		assert.Equal(t, types.RightPut, q.Right)
		assert.GreaterOrEqual(t, q.Bid, 0.0)
		assert.Greater(t, q.Ask, q.Bid, "ask must sit above bid for %v", q.Strike)
		assert.LessOrEqual(t, q.Delta, 0.0, "put delta must not be positive")
		assert.GreaterOrEqual(t, q.Delta, -1.0)
		assert.GreaterOrEqual(t, q.OpenInterest, 0)

		exp, err := time.Parse("2006-01-02", q.Expiry)
		require.NoError(t, err)
		dte := int(exp.Sub(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)).Hours() / 24)
		assert.GreaterOrEqual(t, dte, 5)
		assert.LessOrEqual(t, dte, 70)
		// Monthly expiries land on a Friday.
		assert.Equal(t, time.Friday, exp.Weekday())
	}
}

func TestSimulatedChainDeltaShrinksOutOfTheMoney(t *testing.T) {
	chain, err := pinnedSource().Chain(context.Background(), "DIA")
	require.NoError(t, err)

	expiries := chain.Expiries()
	require.NotEmpty(t, expiries)
	puts := chain.Puts(expiries[0])
	require.Greater(t, len(puts), 2)

	for i := 1; i < len(puts); i++ {
		assert.Greater(t, puts[i].Strike, puts[i-1].Strike, "puts must come back strike ascending")
	}

	// The deepest out-of-the-money put carries far less delta than the one
	// nearest the money.
	deepest, nearest := puts[0], puts[len(puts)-1]
	assert.Less(t, math.Abs(deepest.Delta), math.Abs(nearest.Delta))
}

func TestSimulatedChainHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pinnedSource().Chain(ctx, "SPY")
	assert.Error(t, err)
}
