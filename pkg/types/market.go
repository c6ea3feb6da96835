package types

import (
	"sort"
	"time"
)

// OptionRight distinguishes calls from puts.
type OptionRight string

const (
	RightCall OptionRight = "C"
	RightPut  OptionRight = "P"
)

// OptionQuote is one contract's market snapshot as supplied by a chain
// source. Expiry uses the ISO date form YYYY-MM-DD. Delta is signed, so put
// deltas are negative.
type OptionQuote struct {
	Ticker       string      `json:"ticker"`
	Right        OptionRight `json:"right"`
	Expiry       string      `json:"expiry"`
	Strike       float64     `json:"strike"`
	Bid          float64     `json:"bid"`
	Ask          float64     `json:"ask"`
	Delta        float64     `json:"delta"`
	OpenInterest int         `json:"openInterest"`
	Volume       int         `json:"volume"`
}

// Mid returns the quote midpoint, zero when the market is empty.
func (q OptionQuote) Mid() float64 {
	if q.Bid <= 0 && q.Ask <= 0 {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// SpreadPct returns the bid/ask spread as a fraction of mid. An empty
// market counts as fully wide.
func (q OptionQuote) SpreadPct() float64 {
	mid := q.Mid()
	if mid <= 0 {
		return 1
	}
	return (q.Ask - q.Bid) / mid
}

// OptionChain is everything a source knows about one underlying at a point
// in time: the spot price and the live option quotes.
type OptionChain struct {
	Ticker string        `json:"ticker"`
	Spot   float64       `json:"spot"`
	Asof   time.Time     `json:"asof"`
	Quotes []OptionQuote `json:"quotes"`
}

// Puts returns the chain's put quotes for one expiry, strike ascending.
func (c OptionChain) Puts(expiry string) []OptionQuote {
	var puts []OptionQuote
	for _, q := range c.Quotes {
		if q.Right == RightPut && q.Expiry == expiry {
			puts = append(puts, q)
		}
	}
	sort.Slice(puts, func(i, j int) bool { return puts[i].Strike < puts[j].Strike })
	return puts
}

// Expiries returns the distinct expiries quoted in the chain, ascending.
// ISO dates order correctly as strings.
func (c OptionChain) Expiries() []string {
	seen := make(map[string]bool)
	var expiries []string
	for _, q := range c.Quotes {
		if !seen[q.Expiry] {
			seen[q.Expiry] = true
			expiries = append(expiries, q.Expiry)
		}
	}
	sort.Strings(expiries)
	return expiries
}
