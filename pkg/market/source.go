// Package market supplies option-chain data and the screening stages that
// turn chains into scored candidate positions
package market

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/strikeline/strikeline/pkg/types"
)

const riskFreeRate = 0.04

// SimulatedSource generates synthetic option chains. A chain is a pure
// function of ticker and valuation date: repeated calls within a day return
// identical quotes, so cycles are stable and tests reproducible. Pricing is
// Black-Scholes with a simple put skew; spreads and open interest follow a
// per-ticker liquidity tier.
type SimulatedSource struct {
	now func() time.Time
}

// NewSimulatedSource builds a source valued at wall-clock time.
func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{now: time.Now}
}

// NewSimulatedSourceAt pins the valuation clock, for tests.
func NewSimulatedSourceAt(now func() time.Time) *SimulatedSource {
	return &SimulatedSource{now: now}
}

// Chain implements interfaces.ChainSource.
func (s *SimulatedSource) Chain(ctx context.Context, ticker string) (types.OptionChain, error) {
	if err := ctx.Err(); err != nil {
		return types.OptionChain{}, err
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	asof := s.now()

	ident := hash64(ticker)
	rng := rand.New(rand.NewSource(int64(hash64(ticker + asof.Format("2006-01-02")))))

	spot := 20 + float64(ident%481) + float64((ident>>16)%100)/100
	spot = round2(spot * (1 + (rng.Float64()-0.5)*0.02))

	baseVol := 0.15 + 0.35*float64((ident>>24)%1000)/1000
	liquidity := 0.3 + 0.7*float64((ident>>40)%1000)/1000

	chain := types.OptionChain{Ticker: ticker, Spot: spot, Asof: asof}
	for _, expiry := range monthlyExpiries(asof) {
		dte := int(expiry.Sub(midnight(asof)).Hours() / 24)
		if dte < 5 || dte > 70 {
			continue
		}
		chain.Quotes = append(chain.Quotes, s.quoteExpiry(rng, ticker, spot, baseVol, liquidity, expiry, dte)...)
	}
	return chain, nil
}

// quoteExpiry prices the put grid for one expiry.
func (s *SimulatedSource) quoteExpiry(rng *rand.Rand, ticker string, spot, baseVol, liquidity float64, expiry time.Time, dte int) []types.OptionQuote {
	step := strikeStep(spot)
	low := math.Floor(spot*0.70/step) * step
	high := math.Ceil(spot*1.05/step) * step
	horizon := float64(dte) / 365
	date := expiry.Format("2006-01-02")

	var quotes []types.OptionQuote
	for strike := low; strike <= high+1e-9; strike += step {
		moneyness := strike / spot
		sigma := baseVol + 0.25*math.Max(0, 1-moneyness) + 0.02*rng.Float64()

		theo, delta := putPrice(spot, strike, horizon, sigma)
		if theo < 0.01 {
			theo = 0.01
		}

		spreadFrac := (0.015 + 0.08*rng.Float64()) * (2 - liquidity)
		half := math.Max(0.01, theo*spreadFrac/2)
		bid := math.Max(0, round2(theo-half))
		ask := round2(theo + half)
		if ask <= bid {
			ask = bid + 0.01
		}

		oi := int(liquidity * 6000 * math.Exp(-5*math.Abs(math.Log(moneyness))))
		oi += rng.Intn(200)

		quotes = append(quotes, types.OptionQuote{
			Ticker:       ticker,
			Right:        types.RightPut,
			Expiry:       date,
			Strike:       round2(strike),
			Bid:          bid,
			Ask:          ask,
			Delta:        round4(delta),
			OpenInterest: oi,
			Volume:       oi/8 + rng.Intn(50),
		})
	}
	return quotes
}

// putPrice returns the Black-Scholes price and delta of a European put.
func putPrice(spot, strike, horizon, sigma float64) (price, delta float64) {
	if horizon <= 0 || sigma <= 0 {
		return math.Max(0, strike-spot), 0
	}
	sqrtT := math.Sqrt(horizon)
	d1 := (math.Log(spot/strike) + (riskFreeRate+0.5*sigma*sigma)*horizon) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	price = strike*math.Exp(-riskFreeRate*horizon)*normCDF(-d2) - spot*normCDF(-d1)
	delta = normCDF(d1) - 1
	return price, delta
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// monthlyExpiries returns the next few third-Friday expiries from asof.
func monthlyExpiries(asof time.Time) []time.Time {
	var expiries []time.Time
	year, month, _ := asof.Date()
	for i := 0; i < 4; i++ {
		expiries = append(expiries, thirdFriday(year, month))
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return expiries
}

func thirdFriday(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+14)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func strikeStep(spot float64) float64 {
	switch {
	case spot < 25:
		return 0.5
	case spot < 100:
		return 1
	case spot < 200:
		return 2.5
	default:
		return 5
	}
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
func round4(x float64) float64 { return math.Round(x*10000) / 10000 }
