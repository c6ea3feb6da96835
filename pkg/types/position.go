package types

import "time"

// Position is one candidate credit spread tracked by the table: identity,
// pricing attributes and its lifecycle status. Rows are owned by the table;
// everything outside the table works on copies.
type Position struct {
	Key    Key    `json:"key" yaml:"key"`
	Status Status `json:"status" yaml:"status"`

	// Score is the priority field every capacity-limited admission rule
	// orders by, higher is better.
	Score float64 `json:"score" yaml:"score"`

	Premium            float64 `json:"premium" yaml:"premium"`
	Collateral         float64 `json:"collateral" yaml:"collateral"`
	ReturnOnCollateral float64 `json:"returnOnCollateral" yaml:"returnOnCollateral"`
	Width              float64 `json:"width" yaml:"width"`
	ShortDelta         float64 `json:"shortDelta" yaml:"shortDelta"`
	OpenInterest       int     `json:"openInterest" yaml:"openInterest"`
	BidAskPct          float64 `json:"bidAskPct" yaml:"bidAskPct"`
	Quantity           int     `json:"quantity" yaml:"quantity"`

	Created time.Time `json:"created" yaml:"created"`
	Updated time.Time `json:"updated" yaml:"updated"`
}

// Open reports whether the position occupies portfolio capacity.
func (p Position) Open() bool {
	return p.Status == StatusAccepted || p.Status == StatusPurchased
}

// Age returns how long ago the position was first seen.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.Created)
}
